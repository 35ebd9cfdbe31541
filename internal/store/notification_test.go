package store

import (
	"errors"
	"testing"

	"gorm.io/gorm"

	"github.com/verustcode/stagereport/internal/model"
)

func TestNotificationStore(t *testing.T) {
	store, cleanup := SetupTestDB(t)
	defer cleanup()

	for i, msg := range []string{"first", "second", "third"} {
		n := &model.Notification{UserID: 1, ProjectID: 5, Message: msg, IsRead: i == 0}
		if err := store.Notification().Create(n); err != nil {
			t.Fatalf("Create() failed: %v", err)
		}
	}
	if err := store.Notification().Create(&model.Notification{UserID: 2, Message: "other user"}); err != nil {
		t.Fatal(err)
	}

	items, total, err := store.Notification().ListByUser(1, false, 10, 0)
	if err != nil {
		t.Fatalf("ListByUser() failed: %v", err)
	}
	if total != 3 || len(items) != 3 {
		t.Fatalf("total = %d, len = %d, want 3", total, len(items))
	}
	if items[0].Message != "third" {
		t.Errorf("items[0] = %q, want newest first", items[0].Message)
	}

	unread, total, err := store.Notification().ListByUser(1, true, 10, 0)
	if err != nil || total != 2 || len(unread) != 2 {
		t.Errorf("unread = %d/%d, %v", len(unread), total, err)
	}

	if err := store.Notification().MarkRead(unread[0].ID, 1); err != nil {
		t.Fatalf("MarkRead() failed: %v", err)
	}
	if count, _ := store.Notification().CountUnread(1); count != 1 {
		t.Errorf("CountUnread() = %d, want 1", count)
	}

	// Another user's notification is invisible
	if err := store.Notification().MarkRead(unread[1].ID, 2); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("MarkRead() by other user = %v, want ErrRecordNotFound", err)
	}

	page, total, _ := store.Notification().ListByUser(1, false, 1, 1)
	if total != 3 || len(page) != 1 || page[0].Message != "second" {
		t.Errorf("page = %v, total = %d", page, total)
	}
}
