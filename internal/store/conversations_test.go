package store

import (
	"errors"
	"testing"
	"time"

	"sudooom.im.client/internal/model"
)

func testConversation(id string, unread int) model.Conversation {
	return model.Conversation{
		ID: id,
		Participants: []model.User{
			{ID: "u1", FirstName: "Ada"},
			{ID: "u2", FirstName: "Ben"},
		},
		UpdatedAt:   testBase,
		UnreadCount: unread,
	}
}

func TestConversationStore_ApplyPageReplacesAndRecomputes(t *testing.T) {
	s := NewConversationStore()

	s.BeginLoad()
	if !s.Loading() {
		t.Error("Expected loading after BeginLoad")
	}

	s.ApplyPage([]model.Conversation{
		testConversation("c1", 2),
		testConversation("c2", -1), // 负值规范化为 0
	}, model.PageMeta{Page: 1, Limit: 20, Total: 2})

	if s.Loading() {
		t.Error("Expected loading cleared")
	}
	if got := s.TotalUnread(); got != 2 {
		t.Errorf("Expected totalUnread 2, got %d", got)
	}

	// 第 1 页再次加载：整体替换
	s.ApplyPage([]model.Conversation{testConversation("c3", 1)},
		model.PageMeta{Page: 1, Limit: 20, Total: 1})

	list := s.List()
	if len(list) != 1 || list[0].ID != "c3" {
		t.Errorf("Expected [c3], got %+v", list)
	}
	if got := s.TotalUnread(); got != 1 {
		t.Errorf("Expected totalUnread 1, got %d", got)
	}
}

func TestConversationStore_UpsertNoOverwrite(t *testing.T) {
	s := NewConversationStore()

	s.ApplyPage([]model.Conversation{testConversation("c1", 3)},
		model.PageMeta{Page: 1, Limit: 20, Total: 1})

	// 已存在：拉取数据不得覆盖实时更新过的摘要
	s.Upsert(testConversation("c1", 0))
	if conv, _ := s.Get("c1"); conv.UnreadCount != 3 {
		t.Errorf("Expected unreadCount 3 preserved, got %d", conv.UnreadCount)
	}

	// 未见过：插到队首
	s.Upsert(testConversation("c2", 0))
	list := s.List()
	if list[0].ID != "c2" {
		t.Errorf("Expected c2 at front, got %s", list[0].ID)
	}
}

func TestConversationStore_ApplyIncomingMessageMovesToFront(t *testing.T) {
	s := NewConversationStore()
	s.ApplyPage([]model.Conversation{
		testConversation("c1", 0),
		testConversation("c2", 0),
		testConversation("c3", 0),
	}, model.PageMeta{Page: 1, Limit: 20, Total: 3})

	msg := testMessage("m1", "c3", time.Hour)
	if !s.ApplyIncomingMessage("c3", msg) {
		t.Fatal("Expected known conversation to be updated")
	}

	list := s.List()
	if list[0].ID != "c3" {
		t.Fatalf("Expected c3 at index 0, got %s", list[0].ID)
	}
	if list[0].LastMessage == nil || list[0].LastMessage.ID != "m1" {
		t.Error("Expected lastMessage m1")
	}
	if !list[0].UpdatedAt.Equal(msg.CreatedAt) {
		t.Error("Expected updatedAt to follow message createdAt")
	}
}

func TestConversationStore_ApplyIncomingMessageUnknownNoop(t *testing.T) {
	s := NewConversationStore()
	s.ApplyPage([]model.Conversation{testConversation("c1", 0)},
		model.PageMeta{Page: 1, Limit: 20, Total: 1})

	if s.ApplyIncomingMessage("missing", testMessage("m1", "missing", 0)) {
		t.Error("Expected unknown conversation to be a no-op")
	}
	if list := s.List(); len(list) != 1 || list[0].ID != "c1" {
		t.Errorf("Expected list unchanged, got %+v", list)
	}
}

func TestConversationStore_UnreadAccounting(t *testing.T) {
	s := NewConversationStore()
	s.ApplyPage([]model.Conversation{
		testConversation("c1", 0),
		testConversation("c2", 5),
	}, model.PageMeta{Page: 1, Limit: 20, Total: 2})

	before := s.TotalUnread()

	s.IncrementUnread("c1")
	s.IncrementUnread("c1")
	if got := s.TotalUnread(); got != before+2 {
		t.Errorf("Expected totalUnread %d, got %d", before+2, got)
	}

	s.ResetUnread("c1")
	conv, _ := s.Get("c1")
	if conv.UnreadCount != 0 {
		t.Errorf("Expected unreadCount 0, got %d", conv.UnreadCount)
	}
	// 清零只扣掉 c1 自己的贡献
	if got := s.TotalUnread(); got != before {
		t.Errorf("Expected totalUnread %d, got %d", before, got)
	}
}

func TestConversationStore_FailLoadKeepsList(t *testing.T) {
	s := NewConversationStore()
	s.ApplyPage([]model.Conversation{testConversation("c1", 0)},
		model.PageMeta{Page: 1, Limit: 20, Total: 1})

	loadErr := errors.New("boom")
	s.BeginLoad()
	s.FailLoad(loadErr)

	if !errors.Is(s.LoadError(), loadErr) {
		t.Errorf("Expected retained error, got %v", s.LoadError())
	}
	if len(s.List()) != 1 {
		t.Error("Expected partial data retained")
	}
}
