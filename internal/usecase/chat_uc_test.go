package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ameeramer/personal-coacher/internal/domain"
	"github.com/ameeramer/personal-coacher/internal/domain/model"
	"github.com/ameeramer/personal-coacher/internal/usecase"
)

func TestChatUseCase_SendMessage(t *testing.T) {
	ctx := context.Background()
	testLogger := newTestLogger()

	t.Run("should create conversation, pending pair and job on first message", func(t *testing.T) {
		// --- Arrange ---
		convRepo := NewMockConversationRepo()
		jobRepo := NewMockJobRepo()
		queue := &MockQueue{}

		uc := usecase.NewChatUseCase(convRepo, jobRepo, queue, mockTxManager{}, testLogger)

		// --- Act ---
		sub, err := uc.SendMessage(ctx, "user-1", "", "Hi")

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if sub.ConversationID == "" {
			t.Fatal("expected a new conversation id")
		}
		if sub.UserMessage.Content != "Hi" || sub.UserMessage.Status != model.MessageCompleted {
			t.Errorf("unexpected user message: %+v", sub.UserMessage)
		}
		if sub.PendingMessage.Role != "assistant" || sub.PendingMessage.Status != model.MessagePending {
			t.Errorf("unexpected pending message: %+v", sub.PendingMessage)
		}
		if sub.Job.Status != model.JobStatusPending || sub.Job.Kind != model.JobKindChatReply {
			t.Errorf("unexpected job: status=%s kind=%s", sub.Job.Status, sub.Job.Kind)
		}
		if sub.Job.ConversationID != sub.ConversationID || sub.Job.MessageID != sub.PendingMessage.ID {
			t.Error("job correlation fields do not match the created rows")
		}
		if len(queue.Dispatched) != 1 || queue.Dispatched[0] != sub.Job.ID {
			t.Errorf("expected one dispatch for the job, got %v", queue.Dispatched)
		}
		stored := jobRepo.Get(sub.Job.ID)
		if stored == nil || stored.QueueMessageID == "" {
			t.Error("expected the queue message id recorded on the job")
		}
	})

	t.Run("should append to an existing conversation", func(t *testing.T) {
		convRepo := NewMockConversationRepo()
		jobRepo := NewMockJobRepo()
		queue := &MockQueue{}
		uc := usecase.NewChatUseCase(convRepo, jobRepo, queue, mockTxManager{}, testLogger)

		first, err := uc.SendMessage(ctx, "user-1", "", "Hi")
		if err != nil {
			t.Fatalf("first send: %v", err)
		}

		second, err := uc.SendMessage(ctx, "user-1", first.ConversationID, "More context")
		if err != nil {
			t.Fatalf("second send: %v", err)
		}
		if second.ConversationID != first.ConversationID {
			t.Error("expected the same conversation to be reused")
		}

		conv, err := uc.GetConversation(ctx, "user-1", first.ConversationID)
		if err != nil {
			t.Fatalf("get conversation: %v", err)
		}
		if len(conv.Messages) != 4 {
			t.Errorf("expected 4 messages (2 user + 2 placeholders), got %d", len(conv.Messages))
		}
	})

	t.Run("should reject empty message", func(t *testing.T) {
		uc := usecase.NewChatUseCase(NewMockConversationRepo(), NewMockJobRepo(), &MockQueue{}, mockTxManager{}, testLogger)

		_, err := uc.SendMessage(ctx, "user-1", "", "   ")
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("should not reveal another user's conversation", func(t *testing.T) {
		convRepo := NewMockConversationRepo()
		jobRepo := NewMockJobRepo()
		uc := usecase.NewChatUseCase(convRepo, jobRepo, &MockQueue{}, mockTxManager{}, testLogger)

		sub, err := uc.SendMessage(ctx, "user-1", "", "Hi")
		if err != nil {
			t.Fatalf("send: %v", err)
		}

		_, err = uc.SendMessage(ctx, "user-2", sub.ConversationID, "mine now")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound for cross-owner append, got %v", err)
		}
		_, err = uc.GetConversation(ctx, "user-2", sub.ConversationID)
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound for cross-owner read, got %v", err)
		}
	})

	t.Run("should not revert a job the worker finished before dispatch returned", func(t *testing.T) {
		// The consumer can claim and even finalize the delivery before
		// Dispatch returns to the producer; recording the queue message id
		// afterwards must not touch the job's state machine.
		convRepo := NewMockConversationRepo()
		jobRepo := NewMockJobRepo()
		queue := &MockQueue{DispatchFunc: func(ctx context.Context, jobID string) (string, error) {
			if _, err := jobRepo.Claim(ctx, jobID); err != nil {
				t.Fatalf("claim inside dispatch: %v", err)
			}
			if _, err := jobRepo.Finalize(ctx, jobID, model.JobStatusCompleted, "done early", ""); err != nil {
				t.Fatalf("finalize inside dispatch: %v", err)
			}
			return "task-" + jobID, nil
		}}
		uc := usecase.NewChatUseCase(convRepo, jobRepo, queue, mockTxManager{}, testLogger)

		sub, err := uc.SendMessage(ctx, "user-1", "", "Hi")
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}

		stored := jobRepo.Get(sub.Job.ID)
		if stored.Status != model.JobStatusCompleted || stored.Result != "done early" {
			t.Fatalf("terminal job reverted by the dispatch bookkeeping: status=%s result=%q", stored.Status, stored.Result)
		}
		if stored.QueueMessageID == "" {
			t.Error("expected the queue message id recorded alongside the terminal state")
		}
	})

	t.Run("should leave the job pending when queue dispatch fails", func(t *testing.T) {
		convRepo := NewMockConversationRepo()
		jobRepo := NewMockJobRepo()
		queue := &MockQueue{DispatchFunc: func(ctx context.Context, jobID string) (string, error) {
			return "", errors.New("broker down")
		}}
		uc := usecase.NewChatUseCase(convRepo, jobRepo, queue, mockTxManager{}, testLogger)

		sub, err := uc.SendMessage(ctx, "user-1", "", "Hi")
		if err != nil {
			t.Fatalf("expected submit to succeed despite dispatch failure, got: %v", err)
		}
		stored := jobRepo.Get(sub.Job.ID)
		if stored == nil {
			t.Fatal("job row missing")
		}
		if stored.Status != model.JobStatusPending {
			t.Errorf("expected job to stay pending, got %s", stored.Status)
		}
		if stored.QueueMessageID != "" {
			t.Error("expected no queue message id after failed dispatch")
		}
	})
}
