package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"sudooom.im.client/internal/model"
	"sudooom.im.client/internal/socket"
	"sudooom.im.client/internal/store"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	selectedStyle = lipgloss.NewStyle().Background(lipgloss.Color("236")).Bold(true)
	unreadStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	selfMsgStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	peerMsgStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	dateStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Bold(true)
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("120"))
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	panelStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func (a *App) View() string {
	if a.width <= 0 || a.height <= 0 {
		return ""
	}

	listW := a.listWidth()
	chatW := a.chatWidth()
	bodyH := max(4, a.height-2)

	left := a.renderConversationList(listW, bodyH)
	right := a.renderChatPanel(chatW, bodyH)
	body := lipgloss.JoinHorizontal(lipgloss.Top, left, right)

	return lipgloss.JoinVertical(lipgloss.Left, a.renderHeader(), body)
}

func (a *App) renderHeader() string {
	title := titleStyle.Render("Chat")
	if total := a.convs.TotalUnread(); total > 0 {
		title += unreadStyle.Render(fmt.Sprintf("  (%d unread)", total))
	}

	conn := mutedStyle.Render("  [" + a.connState.String() + "]")
	if a.connState == socket.StateConnected {
		conn = statusStyle.Render("  [" + a.connState.String() + "]")
	}

	line := title + conn
	if a.lastErr != nil {
		line += errStyle.Render("  " + truncate(a.lastErr.Error(), max(0, a.width-lipgloss.Width(line)-2)))
	}
	return line
}

func (a *App) renderConversationList(width, height int) string {
	innerW := max(1, width-4)
	rows := max(1, height-3)

	list := a.convs.List()
	lines := make([]string, 0, rows+1)
	lines = append(lines, mutedStyle.Render(truncate("j/k move  Enter open  r reload  m more", innerW)))

	if a.convs.Loading() && len(list) == 0 {
		lines = append(lines, mutedStyle.Render("Loading..."))
	} else if len(list) == 0 {
		lines = append(lines, mutedStyle.Render("No conversations"))
	}

	start := 0
	if a.cursor >= rows {
		start = a.cursor - rows + 1
	}
	for i := start; i < len(list) && len(lines) < rows+1; i++ {
		conv := list[i]
		lines = append(lines, a.renderConversationRow(conv, i == a.cursor && a.focus == focusList, innerW))
	}

	if err := a.convs.LoadError(); err != nil {
		lines = append(lines, errStyle.Render(truncate(err.Error(), innerW)))
	}

	content := strings.Join(lines, "\n")
	return panelStyle.Width(width - 2).Height(height - 2).Render(content)
}

func (a *App) renderConversationRow(conv model.Conversation, selected bool, width int) string {
	other, _ := conv.OtherParticipant(a.selfID())
	name := other.FullName()
	if name == "" {
		name = "(unknown)"
	}

	preview := ""
	if conv.LastMessage != nil {
		if conv.LastMessage.DeletedForUser(a.selfID()) {
			preview = "消息已删除"
		} else {
			preview = conv.LastMessage.Text
		}
	}

	badge := ""
	if conv.UnreadCount > 0 {
		badge = fmt.Sprintf(" [%d]", conv.UnreadCount)
	}

	line := truncate(name+badge+"  "+preview, width)
	switch {
	case selected:
		return selectedStyle.Render(line)
	case conv.UnreadCount > 0:
		return unreadStyle.Render(line)
	default:
		return line
	}
}

func (a *App) renderChatPanel(width, height int) string {
	innerW := max(1, width-4)
	active := a.ctrl.ActiveConversation()

	if active == "" {
		content := mutedStyle.Render("Select a conversation")
		return panelStyle.Width(width - 2).Height(height - 2).Render(content)
	}

	conv, _ := a.convs.Get(active)
	other, _ := conv.OtherParticipant(a.selfID())

	header := titleStyle.Render(truncate(other.FullName(), innerW))
	status := statusStyle.Render(truncate(a.presence.StatusText(a.now, active, other.ID), innerW))

	// 底部：错误行（如有）+ 输入框
	footer := a.input.View()
	if err := a.messages.LoadError(active); err != nil {
		footer = errStyle.Render(truncate(err.Error(), innerW)) + "\n" + footer
	}

	bodyH := max(1, height-4-lipgloss.Height(header)-lipgloss.Height(status)-lipgloss.Height(footer))
	body := a.renderMessages(active, innerW, bodyH)

	content := lipgloss.JoinVertical(lipgloss.Left, header, status, body, footer)
	return panelStyle.Width(width - 2).Height(height - 2).Render(content)
}

func (a *App) renderMessages(conversationID string, width, maxLines int) string {
	msgs := a.messages.Messages(conversationID)
	if len(msgs) == 0 {
		if a.messages.Loading(conversationID) {
			return mutedStyle.Render("Loading...")
		}
		return mutedStyle.Render("No messages yet")
	}

	selfID := a.selfID()
	var lines []string
	if a.messages.Meta(conversationID).HasMore() {
		lines = append(lines, mutedStyle.Render("-- PgUp for earlier messages --"))
	}

	for _, group := range store.GroupByDate(msgs) {
		lines = append(lines, dateStyle.Render("── "+group.Date+" ──"))
		for _, msg := range group.Messages {
			lines = append(lines, a.renderMessageLine(msg, selfID, width))
		}
	}

	// 固定贴底显示最新消息
	if len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	return strings.Join(lines, "\n")
}

func (a *App) renderMessageLine(msg model.Message, selfID string, width int) string {
	ts := mutedStyle.Render(msg.CreatedAt.Local().Format("15:04"))

	if msg.DeletedForUser(selfID) {
		return ts + " " + mutedStyle.Italic(true).Render("消息已删除")
	}

	who := msg.Sender.FirstName
	style := peerMsgStyle
	if msg.Sender.ID == selfID {
		who = "me"
		style = selfMsgStyle
	}

	text := msg.Text
	if len(msg.Attachments) > 0 {
		text += fmt.Sprintf(" [%d attachment(s)]", len(msg.Attachments))
	}

	read := ""
	if msg.Sender.ID == selfID && msg.IsRead {
		read = " ✓"
	}

	return truncate(ts+" "+style.Render(who+": ")+text+read, width)
}

// truncate 按显示宽度截断，超出部分以省略号结尾
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes)) > width-1 {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "…"
}
