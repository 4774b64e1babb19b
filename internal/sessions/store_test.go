package sessions

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/thebabesclub/commerce/internal/dynamotest"
)

const testTable = "commerce-test"

func testPair(sig, id string) (Record, Pointer) {
	rec := Record{
		PK:        "QUOTE#" + sig,
		SK:        "SESSION#" + id,
		SessionID: id,
		Status:    StatusCreated,
		CreatedAt: "2026-08-24T10:00:00Z",
		UpdatedAt: "2026-08-24T10:00:00Z",
	}
	ptr := Pointer{
		PK:             "SESSION#" + id,
		SK:             "METADATA",
		SessionID:      id,
		QuoteSignature: sig,
		Status:         StatusCreated,
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
	}
	return rec, ptr
}

func TestPutLinked_And_GetPointer(t *testing.T) {
	table := dynamotest.New()
	s := NewStore(table, testTable)
	ctx := context.Background()

	rec, ptr := testPair("sig-abc", "sess_1")
	if err := s.PutLinked(ctx, rec, ptr); err != nil {
		t.Fatalf("PutLinked error: %v", err)
	}
	if table.Len(testTable) != 2 {
		t.Fatalf("expected 2 records, got %d", table.Len(testTable))
	}

	got, err := s.GetPointer(ctx, "sess_1")
	if err != nil {
		t.Fatalf("GetPointer error: %v", err)
	}
	if got == nil {
		t.Fatalf("pointer missing")
	}
	if got.QuoteSignature != "sig-abc" {
		t.Fatalf("quote signature mismatch: %s", got.QuoteSignature)
	}

	missing, err := s.GetPointer(ctx, "sess_none")
	if err != nil {
		t.Fatalf("GetPointer unknown error: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unknown session")
	}
}

func TestUpdateStatus_TouchesBothRecords(t *testing.T) {
	table := dynamotest.New()
	s := NewStore(table, testTable)
	ctx := context.Background()

	rec, ptr := testPair("sig-abc", "sess_1")
	if err := s.PutLinked(ctx, rec, ptr); err != nil {
		t.Fatalf("PutLinked error: %v", err)
	}

	extra := map[string]string{"paymentStatus": "paid", "processorStatus": "complete"}
	if err := s.UpdateStatus(ctx, "sig-abc", "sess_1", StatusCompleted, "2026-08-24T11:00:00Z", extra); err != nil {
		t.Fatalf("UpdateStatus error: %v", err)
	}

	for _, key := range [][2]string{
		{"QUOTE#sig-abc", "SESSION#sess_1"},
		{"SESSION#sess_1", "METADATA"},
	} {
		item := table.Item(testTable, key[0], key[1])
		if item == nil {
			t.Fatalf("record %v missing", key)
		}
		if st, ok := item["status"].(*types.AttributeValueMemberS); !ok || st.Value != StatusCompleted {
			t.Fatalf("status not updated on %v: %+v", key, item["status"])
		}
		if ps, ok := item["paymentStatus"].(*types.AttributeValueMemberS); !ok || ps.Value != "paid" {
			t.Fatalf("paymentStatus not set on %v: %+v", key, item["paymentStatus"])
		}
		if ua, ok := item["updatedAt"].(*types.AttributeValueMemberS); !ok || ua.Value != "2026-08-24T11:00:00Z" {
			t.Fatalf("updatedAt not set on %v", key)
		}
	}
}
