package ui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"sudooom.im.client/internal/controller"
	apperrors "sudooom.im.client/internal/errors"
	"sudooom.im.client/internal/socket"
	"sudooom.im.client/internal/store"
)

const statusRefreshInterval = 30 * time.Second

type focusArea int

const (
	focusList focusArea = iota
	focusChat
)

// changeMsg store 数据已变化，重新渲染
type changeMsg struct{}

// connStateMsg 连接状态变化
type connStateMsg socket.State

type tickMsg time.Time

// actionDoneMsg 一次控制器操作完成
type actionDoneMsg struct {
	err error
}

// App 聊天终端界面
// 左侧会话列表 + 右侧消息面板，数据全部从 store 读取；
// store 变更通过通知通道唤醒重渲染，自身不缓存会话或消息
type App struct {
	ctrl     *controller.Controller
	messages *store.MessageStore
	convs    *store.ConversationStore
	presence *store.PresenceTracker

	selfID func() string

	changes    <-chan struct{}
	connStates <-chan socket.State

	input textinput.Model

	focus     focusArea
	cursor    int
	width     int
	height    int
	connState socket.State
	now       time.Time
	lastErr   error
}

// Options App 依赖
type Options struct {
	Controller    *controller.Controller
	Messages      *store.MessageStore
	Conversations *store.ConversationStore
	Presence      *store.PresenceTracker
	SelfID        func() string
	Changes       <-chan struct{}
	ConnStates    <-chan socket.State
}

// NewApp 创建界面模型
func NewApp(opts Options) *App {
	input := textinput.New()
	input.Placeholder = "输入消息..."
	input.CharLimit = 2000
	input.Prompt = "> "

	return &App{
		ctrl:       opts.Controller,
		messages:   opts.Messages,
		convs:      opts.Conversations,
		presence:   opts.Presence,
		selfID:     opts.SelfID,
		changes:    opts.Changes,
		connStates: opts.ConnStates,
		input:      input,
		focus:      focusList,
		now:        time.Now(),
	}
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(
		a.loadConversationsCmd(),
		a.waitForChangeCmd(),
		a.waitForConnStateCmd(),
		tickCmd(),
	)
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = typed.Width
		a.height = typed.Height
		a.input.Width = max(10, a.chatWidth()-4)
		return a, nil

	case changeMsg:
		a.clampCursor()
		return a, a.waitForChangeCmd()

	case connStateMsg:
		a.connState = socket.State(typed)
		return a, a.waitForConnStateCmd()

	case tickMsg:
		// 状态行里的 last seen 文案随时间推移变化
		a.now = time.Time(typed)
		return a, tickCmd()

	case actionDoneMsg:
		a.lastErr = typed.err
		// 认证失效无法在界面内恢复，退出让用户重新登录
		if typed.err != nil && apperrors.Is(typed.err, apperrors.ErrUnauthorized) {
			return a, tea.Quit
		}
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(typed)
	}
	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return a, tea.Quit
	case "tab":
		if a.focus == focusList {
			a.focus = focusChat
			a.input.Focus()
		} else {
			a.focus = focusList
			a.input.Blur()
		}
		return a, nil
	}

	if a.focus == focusList {
		return a.handleListKey(msg)
	}
	return a.handleChatKey(msg)
}

func (a *App) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "j", "down":
		a.cursor++
		a.clampCursor()
		return a, nil
	case "k", "up":
		a.cursor--
		a.clampCursor()
		return a, nil
	case "enter":
		list := a.convs.List()
		if a.cursor >= len(list) {
			return a, nil
		}
		id := list[a.cursor].ID
		a.focus = focusChat
		a.input.Focus()
		return a, a.selectConversationCmd(id)
	case "r":
		return a, a.loadConversationsCmd()
	case "m":
		return a, a.loadMoreConversationsCmd()
	}
	return a, nil
}

func (a *App) handleChatKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		a.focus = focusList
		a.input.Blur()
		a.input.SetValue("")
		a.ctrl.OnKeystroke("")
		a.ctrl.Deselect()
		return a, nil
	case "enter":
		text := a.input.Value()
		if text == "" {
			return a, nil
		}
		a.input.SetValue("")
		return a, a.sendCmd(text)
	case "pgup", "ctrl+u":
		return a, a.loadOlderCmd()
	}

	var cmd tea.Cmd
	before := a.input.Value()
	a.input, cmd = a.input.Update(msg)
	if a.input.Value() != before {
		a.ctrl.OnKeystroke(a.input.Value())
	}
	return a, cmd
}

// ============== Cmd ==============

func (a *App) waitForChangeCmd() tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-a.changes; !ok {
			return nil
		}
		return changeMsg{}
	}
}

func (a *App) waitForConnStateCmd() tea.Cmd {
	return func() tea.Msg {
		state, ok := <-a.connStates
		if !ok {
			return nil
		}
		return connStateMsg(state)
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(statusRefreshInterval, func(ts time.Time) tea.Msg {
		return tickMsg(ts)
	})
}

func (a *App) loadConversationsCmd() tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{err: a.ctrl.LoadConversations(context.Background())}
	}
}

func (a *App) loadMoreConversationsCmd() tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{err: a.ctrl.LoadMoreConversations(context.Background())}
	}
}

func (a *App) selectConversationCmd(conversationID string) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{err: a.ctrl.SelectConversation(context.Background(), conversationID)}
	}
}

func (a *App) loadOlderCmd() tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{err: a.ctrl.LoadOlderMessages(context.Background())}
	}
}

func (a *App) sendCmd(text string) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{err: a.ctrl.Send(text)}
	}
}

func (a *App) clampCursor() {
	n := len(a.convs.List())
	if n == 0 {
		a.cursor = 0
		return
	}
	if a.cursor < 0 {
		a.cursor = 0
	}
	if a.cursor >= n {
		a.cursor = n - 1
	}
}

func (a *App) chatWidth() int {
	return max(20, a.width-a.listWidth()-1)
}

func (a *App) listWidth() int {
	return max(24, a.width/3)
}
