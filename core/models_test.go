package core

import (
	"testing"
)

func TestIDFromContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "plain content", content: "test content"},
		{name: "empty string", content: ""},
		{name: "long content", content: "This is a much longer piece of content that should still hash consistently"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id1 := IDFromContent(tt.content)
			id2 := IDFromContent(tt.content)
			if id1 != id2 {
				t.Errorf("IDFromContent() produced different IDs for same content: %d vs %d", id1, id2)
			}
		})
	}
}

func TestIDFromContent_Different(t *testing.T) {
	if IDFromContent("content1") == IDFromContent("content2") {
		t.Errorf("IDFromContent() produced same ID for different content")
	}
}

func TestIngestKeyFor(t *testing.T) {
	a := IngestKeyFor("instance-a", 0)
	if a != IngestKeyFor("instance-a", 0) {
		t.Error("IngestKeyFor() is not deterministic")
	}
	if a == IngestKeyFor("instance-a", 1) {
		t.Error("IngestKeyFor() collides across chunk indexes")
	}
	if a == IngestKeyFor("instance-b", 0) {
		t.Error("IngestKeyFor() collides across instances")
	}
}

func TestRoleValid(t *testing.T) {
	if !RoleUser.Valid() || !RoleAssistant.Valid() {
		t.Error("known roles must be valid")
	}
	if Role("system").Valid() {
		t.Error("system is not a conversation role")
	}
}

func TestWorkflowStatusTerminal(t *testing.T) {
	tests := map[WorkflowStatus]bool{
		WorkflowPending:   false,
		WorkflowRunning:   false,
		WorkflowCompleted: true,
		WorkflowPartial:   true,
	}
	for status, want := range tests {
		if got := status.Terminal(); got != want {
			t.Errorf("%s.Terminal() = %v, want %v", status, got, want)
		}
	}
}
