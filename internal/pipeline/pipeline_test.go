package pipeline

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/hooklinehq/hookline/internal/relay"
)

type fakeFetcher struct {
	data        []byte
	contentType string
	err         error
	calls       int
	lastID      string
}

func (f *fakeFetcher) FetchContent(_ context.Context, messageID string) ([]byte, string, error) {
	f.calls++
	f.lastID = messageID
	if f.err != nil {
		return nil, "", f.err
	}
	return f.data, f.contentType, nil
}

type fakeStore struct {
	putErr    error
	urlErr    error
	deleteErr error
	putKey    string
	putBody   []byte
	putSize   int64
	putType   string
	deletes   []string
}

func (f *fakeStore) Put(_ context.Context, key string, r io.Reader, size int64, contentType string) error {
	if f.putErr != nil {
		return f.putErr
	}
	body, _ := io.ReadAll(r)
	f.putKey = key
	f.putBody = body
	f.putSize = size
	f.putType = contentType
	return nil
}

func (f *fakeStore) URL(_ context.Context, key string, _ time.Duration) (string, error) {
	if f.urlErr != nil {
		return "", f.urlErr
	}
	return "https://storage.test/" + key, nil
}

func (f *fakeStore) Delete(_ context.Context, key string) error {
	f.deletes = append(f.deletes, key)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return nil
}

type fakeAnalyzer struct {
	answer string
	err    error
	calls  int
	url    string
	kind   string
}

func (f *fakeAnalyzer) AnalyzeFile(_ context.Context, fileURL, fileKind string) (string, error) {
	f.calls++
	f.url = fileURL
	f.kind = fileKind
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

type fakeReplier struct {
	err   error
	calls int
	token string
	text  string
}

func (f *fakeReplier) Reply(_ context.Context, replyToken, text string) error {
	f.calls++
	f.token = replyToken
	f.text = text
	return f.err
}

func mediaEvent(id, msgType, token string) relay.Event {
	return relay.Event{
		Type:       relay.EventTypeMessage,
		ReplyToken: token,
		Message:    relay.Message{ID: id, Type: msgType},
	}
}

func TestProcessHappyPath(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{data: []byte("jpeg"), contentType: "image/jpeg"}
	store := &fakeStore{}
	analyzer := &fakeAnalyzer{answer: "A cat sitting on a desk."}
	replier := &fakeReplier{}

	p := New(nil, fetcher, store, analyzer, replier, time.Minute)
	if err := p.Process(context.Background(), mediaEvent("m1", relay.MessageTypeImage, "tok-1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if fetcher.lastID != "m1" {
		t.Fatalf("unexpected fetched id: %q", fetcher.lastID)
	}
	if store.putKey != "m1.jpg" {
		t.Fatalf("unexpected staged key: %q", store.putKey)
	}
	if string(store.putBody) != "jpeg" || store.putSize != 4 || store.putType != "image/jpeg" {
		t.Fatalf("unexpected staged object: body=%q size=%d type=%q", store.putBody, store.putSize, store.putType)
	}
	if analyzer.url != "https://storage.test/m1.jpg" || analyzer.kind != "image" {
		t.Fatalf("unexpected analysis input: url=%q kind=%q", analyzer.url, analyzer.kind)
	}
	if len(store.deletes) != 1 || store.deletes[0] != "m1.jpg" {
		t.Fatalf("expected exactly one cleanup, got %v", store.deletes)
	}
	if replier.token != "tok-1" || replier.text != "A cat sitting on a desk." {
		t.Fatalf("unexpected reply: token=%q text=%q", replier.token, replier.text)
	}
}

func TestProcessFetchFailureAborts(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{err: errors.New("status 404")}
	store := &fakeStore{}
	analyzer := &fakeAnalyzer{}
	replier := &fakeReplier{}

	p := New(nil, fetcher, store, analyzer, replier, time.Minute)
	if err := p.Process(context.Background(), mediaEvent("m1", relay.MessageTypeImage, "tok-1")); err == nil {
		t.Fatal("expected an error when the fetch fails")
	}
	if store.putKey != "" {
		t.Fatal("expected nothing staged after a failed fetch")
	}
	if analyzer.calls != 0 || replier.calls != 0 {
		t.Fatal("expected no analysis and no reply after a failed fetch")
	}
	if len(store.deletes) != 0 {
		t.Fatalf("expected no cleanup, got %v", store.deletes)
	}
}

func TestProcessStageFailureAborts(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{data: []byte("jpeg"), contentType: "image/jpeg"}
	store := &fakeStore{putErr: errors.New("bucket unavailable")}
	analyzer := &fakeAnalyzer{}
	replier := &fakeReplier{}

	p := New(nil, fetcher, store, analyzer, replier, time.Minute)
	if err := p.Process(context.Background(), mediaEvent("m1", relay.MessageTypeImage, "tok-1")); err == nil {
		t.Fatal("expected an error when staging fails")
	}
	if analyzer.calls != 0 || replier.calls != 0 {
		t.Fatal("expected no analysis and no reply after a failed stage")
	}
	if len(store.deletes) != 0 {
		t.Fatalf("expected no cleanup when nothing was staged, got %v", store.deletes)
	}
}

func TestProcessURLFailureCleansUp(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{data: []byte("jpeg"), contentType: "image/jpeg"}
	store := &fakeStore{urlErr: errors.New("presign rejected")}
	analyzer := &fakeAnalyzer{}
	replier := &fakeReplier{}

	p := New(nil, fetcher, store, analyzer, replier, time.Minute)
	if err := p.Process(context.Background(), mediaEvent("m1", relay.MessageTypeImage, "tok-1")); err == nil {
		t.Fatal("expected an error when the staged URL fails")
	}
	if len(store.deletes) != 1 || store.deletes[0] != "m1.jpg" {
		t.Fatalf("expected the staged object removed, got %v", store.deletes)
	}
	if analyzer.calls != 0 || replier.calls != 0 {
		t.Fatal("expected no analysis and no reply after a failed stage")
	}
}

func TestProcessAnalysisFailureFallsBack(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{data: []byte("mp4"), contentType: "video/mp4"}
	store := &fakeStore{}
	analyzer := &fakeAnalyzer{err: errors.New("workflow timeout")}
	replier := &fakeReplier{}

	p := New(nil, fetcher, store, analyzer, replier, time.Minute)
	if err := p.Process(context.Background(), mediaEvent("m2", relay.MessageTypeVideo, "tok-2")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if replier.text != "file analysis failed" {
		t.Fatalf("expected fallback reply, got %q", replier.text)
	}
	if len(store.deletes) != 1 {
		t.Fatalf("expected exactly one cleanup, got %v", store.deletes)
	}
}

func TestProcessEmptyAnswerFallsBack(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{data: []byte("oga"), contentType: "audio/ogg"}
	store := &fakeStore{}
	analyzer := &fakeAnalyzer{answer: "   "}
	replier := &fakeReplier{}

	p := New(nil, fetcher, store, analyzer, replier, time.Minute)
	if err := p.Process(context.Background(), mediaEvent("m3", relay.MessageTypeAudio, "tok-3")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if replier.text != "file analysis failed" {
		t.Fatalf("expected fallback reply, got %q", replier.text)
	}
}

func TestProcessCleanupFailureStillReplies(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{data: []byte("jpeg"), contentType: "image/jpeg"}
	store := &fakeStore{deleteErr: errors.New("access denied")}
	analyzer := &fakeAnalyzer{answer: "A receipt."}
	replier := &fakeReplier{}

	p := New(nil, fetcher, store, analyzer, replier, time.Minute)
	if err := p.Process(context.Background(), mediaEvent("m4", relay.MessageTypeImage, "tok-4")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if replier.calls != 1 || replier.text != "A receipt." {
		t.Fatalf("expected the reply despite a failed cleanup, got calls=%d text=%q", replier.calls, replier.text)
	}
}

func TestProcessReplyFailureIsLoggedOnly(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{data: []byte("jpeg"), contentType: "image/jpeg"}
	store := &fakeStore{}
	analyzer := &fakeAnalyzer{answer: "A dog."}
	replier := &fakeReplier{err: errors.New("invalid reply token")}

	p := New(nil, fetcher, store, analyzer, replier, time.Minute)
	if err := p.Process(context.Background(), mediaEvent("m5", relay.MessageTypeImage, "tok-5")); err != nil {
		t.Fatalf("expected reply failures to be suppressed, got %v", err)
	}
}

func TestProcessRequiresMessageID(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{}
	p := New(nil, fetcher, &fakeStore{}, &fakeAnalyzer{}, &fakeReplier{}, time.Minute)
	if err := p.Process(context.Background(), mediaEvent("", relay.MessageTypeImage, "tok")); err == nil {
		t.Fatal("expected an error for a missing message id")
	}
	if fetcher.calls != 0 {
		t.Fatal("expected no fetch for a missing message id")
	}
}

func TestProcessWithoutStoreAborts(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{data: []byte("jpeg"), contentType: "image/jpeg"}
	analyzer := &fakeAnalyzer{}
	p := New(nil, fetcher, nil, analyzer, &fakeReplier{}, time.Minute)
	if err := p.Process(context.Background(), mediaEvent("m6", relay.MessageTypeImage, "tok-6")); err == nil {
		t.Fatal("expected an error without configured storage")
	}
	if analyzer.calls != 0 {
		t.Fatal("expected no analysis without configured storage")
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	extCases := []struct {
		contentType string
		want        string
	}{
		{"image/jpeg", ".jpg"},
		{"IMAGE/JPEG", ".jpg"},
		{"image/png", ".png"},
		{"video/mp4", ".mp4"},
		{"audio/x-m4a", ".m4a"},
		{"application/pdf", ".pdf"},
		{"", ".bin"},
		{"application/x-unknown-thing", ".bin"},
	}
	for _, tc := range extCases {
		if got := extensionFor(tc.contentType); got != tc.want {
			t.Fatalf("extensionFor(%q) = %q, want %q", tc.contentType, got, tc.want)
		}
	}

	kindCases := []struct {
		ext  string
		want string
	}{
		{".jpg", "image"},
		{".JPG", "image"},
		{".webp", "image"},
		{".mov", "video"},
		{".mp3", "audio"},
		{".pdf", "document"},
		{".bin", "document"},
		{"", "document"},
	}
	for _, tc := range kindCases {
		if got := kindFor(tc.ext); got != tc.want {
			t.Fatalf("kindFor(%q) = %q, want %q", tc.ext, got, tc.want)
		}
	}
}
