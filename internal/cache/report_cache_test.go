package cache

import (
	"encoding/json"
	"testing"
	"time"
)

func TestReportCacheHitAndMiss(t *testing.T) {
	reportCache := NewReportCache(Config{TTL: time.Minute, MaxEntries: 10})
	signature := reportCache.BuildSignature("monthly", "gpt-4-turbo", "prompt text")

	if _, hit := reportCache.Get(signature); hit {
		t.Fatalf("expected miss before set")
	}

	reportCache.Set(signature, Entry{Result: json.RawMessage(`{"title":"ok"}`), ModelID: "gpt-4-turbo"})

	entry, hit := reportCache.Get(signature)
	if !hit {
		t.Fatalf("expected hit after set")
	}
	if string(entry.Result) != `{"title":"ok"}` {
		t.Fatalf("unexpected cached result %s", entry.Result)
	}
	if entry.ModelID != "gpt-4-turbo" {
		t.Fatalf("unexpected cached model %q", entry.ModelID)
	}
}

func TestReportCacheSignatureStability(t *testing.T) {
	reportCache := NewReportCache(Config{})

	first := reportCache.BuildSignature("monthly", "gpt-4-turbo", "  prompt  ")
	second := reportCache.BuildSignature("monthly", "gpt-4-turbo", "prompt")
	if first != second {
		t.Fatalf("expected whitespace-insensitive signatures")
	}

	other := reportCache.BuildSignature("comparison", "gpt-4-turbo", "prompt")
	if first == other {
		t.Fatalf("expected distinct signatures for distinct report types")
	}
}

func TestReportCacheEvictsOldest(t *testing.T) {
	reportCache := NewReportCache(Config{TTL: time.Minute, MaxEntries: 2})

	reportCache.Set("a", Entry{Result: json.RawMessage(`1`)})
	time.Sleep(2 * time.Millisecond)
	reportCache.Set("b", Entry{Result: json.RawMessage(`2`)})
	time.Sleep(2 * time.Millisecond)
	reportCache.Set("c", Entry{Result: json.RawMessage(`3`)})

	if _, hit := reportCache.Get("a"); hit {
		t.Fatalf("expected oldest entry evicted")
	}
	if _, hit := reportCache.Get("b"); !hit {
		t.Fatalf("expected entry b retained")
	}
	if _, hit := reportCache.Get("c"); !hit {
		t.Fatalf("expected entry c retained")
	}
}

func TestReportCacheExpiry(t *testing.T) {
	reportCache := NewReportCache(Config{TTL: 5 * time.Millisecond, MaxEntries: 10})
	reportCache.Set("a", Entry{Result: json.RawMessage(`1`)})

	time.Sleep(10 * time.Millisecond)
	if _, hit := reportCache.Get("a"); hit {
		t.Fatalf("expected expired entry to miss")
	}
}
