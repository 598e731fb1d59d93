package middleware

import (
	"context"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

func TestOwnerOnly(t *testing.T) {
	var called []int64
	next := func(_ context.Context, _ *bot.Bot, u *models.Update) {
		called = append(called, ChatID(u))
	}
	h := OwnerOnly(func(id int64) bool { return id == 42 })(next)

	h(context.Background(), nil, &models.Update{Message: &models.Message{Chat: models.Chat{ID: 42}}})
	h(context.Background(), nil, &models.Update{Message: &models.Message{Chat: models.Chat{ID: 7}}})
	h(context.Background(), nil, &models.Update{EditedMessage: &models.Message{Chat: models.Chat{ID: 42}}})
	h(context.Background(), nil, &models.Update{})

	if len(called) != 2 || called[0] != 42 || called[1] != 42 {
		t.Fatalf("handled chats = %v", called)
	}
}

func TestRecoverReports(t *testing.T) {
	var reported error
	h := Recover(func(err error, _ string) { reported = err })(func(context.Context, *bot.Bot, *models.Update) {
		panic("boom")
	})
	h(context.Background(), nil, &models.Update{ID: 1})
	if reported == nil || reported.Error() != "panic: boom" {
		t.Fatalf("reported = %v", reported)
	}
}
