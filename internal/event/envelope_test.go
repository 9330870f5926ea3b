package event

import (
	"strings"
	"testing"
)

func TestEncodeDecode(t *testing.T) {
	e := &Envelope{
		ID:          "0123",
		Kind:        KindPostLiked,
		RecipientID: "9",
		SenderID:    "7",
		PostID:      "42",
	}
	b, err := Encode(e)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := Decode(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Kind != KindPostLiked || got.RecipientID != "9" || got.SenderID != "7" || got.PostID != "42" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestWireFieldNames(t *testing.T) {
	e := &Envelope{Kind: KindPostLiked, RecipientID: "9", SenderID: "7", PostID: "42"}
	b, err := Encode(e)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	s := string(b)
	for _, want := range []string{`"type":"POST_LIKED"`, `"recipientId":"9"`, `"senderId":"7"`, `"postId":"42"`} {
		if !strings.Contains(s, want) {
			t.Fatalf("wire format missing %s: %s", want, s)
		}
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	if _, err := Decode([]byte("{not json")); err == nil {
		t.Fatalf("expected error for bad json")
	}
	if _, err := Decode([]byte(`{"type":"NOT_A_KIND","recipientId":"1","senderId":"2"}`)); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
	if _, err := Decode([]byte(`{"type":"POST_LIKED","senderId":"2"}`)); err == nil {
		t.Fatalf("expected error for missing recipient")
	}
}

func TestDeadLetterQueueName(t *testing.T) {
	if DeadLetterQueue(NotificationQueue) != "notification_events.dlq" {
		t.Fatalf("dlq name")
	}
}

func TestPublishResult(t *testing.T) {
	if !(PublishResult{Queue: PostQueue}).Published() {
		t.Fatalf("clean result should count as published")
	}
	if (PublishResult{Suppressed: true}).Published() {
		t.Fatalf("suppressed result should not count as published")
	}
}
