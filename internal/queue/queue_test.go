package queue

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func writeQueueFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "queue.txt")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write queue file: %v", err)
	}
	return path
}

func readQueueFile(t *testing.T, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read queue file: %v", err)
	}
	return string(data)
}

func TestDrain_CommitsOffsetOverConsumedBytes(t *testing.T) {
	path := writeQueueFile(t, "abcde\nfghij\nklmno\npqrst")

	got, err := Drain(context.Background(), path, WithLimit(2))
	if err != nil {
		t.Fatalf("Drain() error: %v", err)
	}

	want := []string{"abcde\n", "fghij\n"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Drain() = %q, want %q", got, want)
	}

	data := readQueueFile(t, path)
	if len(data) != 23 {
		t.Fatalf("file length = %d, want 23", len(data))
	}
	if !strings.HasPrefix(data, "@12 ") {
		t.Errorf("file header = %q, want prefix %q", data[:4], "@12 ")
	}
	if data[12:] != "klmno\npqrst" {
		t.Errorf("unread body = %q, want %q", data[12:], "klmno\npqrst")
	}

	state, err := Inspect(path)
	if err != nil {
		t.Fatalf("Inspect() error: %v", err)
	}
	if state.Offset != 12 || !state.HasHeader || state.Remaining != 11 || state.Exhausted {
		t.Errorf("Inspect() = %+v", state)
	}
}

func TestDrain_PartialResume(t *testing.T) {
	path := writeQueueFile(t, "one\ntwo\nthree\nfour\n")
	ctx := context.Background()

	passes := [][]string{
		{"one\n", "two\n"},
		{"three\n", "four\n"},
		nil,
	}

	for i, want := range passes {
		got, err := Drain(ctx, path, WithLimit(2))
		if err != nil {
			t.Fatalf("pass %d: Drain() error: %v", i, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("pass %d: Drain() = %q, want %q", i, got, want)
		}
	}
}

func TestDrain_NoDataLoss(t *testing.T) {
	var (
		b    strings.Builder
		want []string
	)
	for i := 0; i < 50; i++ {
		record := fmt.Sprintf("record-%03d %s\n", i, strings.Repeat("x", i%7))
		want = append(want, record)
		b.WriteString(record)
	}
	path := writeQueueFile(t, b.String())
	size := int64(b.Len())

	var got []string
	limits := []int{1, 3, 2, 5, 8, 1, 13}
	for i := 0; len(got) < len(want); i++ {
		if i > len(want) {
			t.Fatalf("queue did not drain after %d passes", i)
		}

		records, err := Drain(context.Background(), path, WithLimit(limits[i%len(limits)]))
		if err != nil {
			t.Fatalf("pass %d: Drain() error: %v", i, err)
		}
		got = append(got, records...)

		state, err := Inspect(path)
		if err != nil {
			t.Fatalf("pass %d: Inspect() error: %v", i, err)
		}
		if state.FileSize != size {
			t.Fatalf("pass %d: file size changed to %d, want %d", i, state.FileSize, size)
		}
		if state.HeaderWidth != headerWidth(size) {
			t.Fatalf("pass %d: header width = %d, want %d", i, state.HeaderWidth, headerWidth(size))
		}
	}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("records across passes differ from file contents:\ngot  %q\nwant %q", got, want)
	}
}

func TestDrain_IdempotentExhaustion(t *testing.T) {
	path := writeQueueFile(t, "alpha\nbeta\ngamma\n")
	ctx := context.Background()

	if _, err := Drain(ctx, path); err != nil {
		t.Fatalf("Drain() error: %v", err)
	}
	exhausted := readQueueFile(t, path)
	if !strings.HasPrefix(exhausted, "@17 ") {
		t.Fatalf("exhausted file = %q, want header @17", exhausted)
	}

	for i := 0; i < 3; i++ {
		got, err := Drain(ctx, path)
		if err != nil {
			t.Fatalf("Drain() on exhausted file error: %v", err)
		}
		if len(got) != 0 {
			t.Fatalf("Drain() on exhausted file = %q, want nothing", got)
		}
		if data := readQueueFile(t, path); data != exhausted {
			t.Fatalf("exhausted file changed: %q -> %q", exhausted, data)
		}
	}

	state, err := Inspect(path)
	if err != nil {
		t.Fatalf("Inspect() error: %v", err)
	}
	if !state.Exhausted || state.Remaining != 0 {
		t.Errorf("Inspect() = %+v, want exhausted", state)
	}
}

func TestDrain_DeleteOnEmpty(t *testing.T) {
	path := writeQueueFile(t, "first\nsecond\nthird\n")
	ctx := context.Background()

	got, err := Drain(ctx, path, WithLimit(2), WithDeleteOnEmpty(true))
	if err != nil {
		t.Fatalf("Drain() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Drain() = %q, want 2 records", got)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("file removed before it was exhausted: %v", err)
	}

	got, err = Drain(ctx, path, WithDeleteOnEmpty(true))
	if err != nil {
		t.Fatalf("Drain() error: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"third\n"}) {
		t.Fatalf("Drain() = %q, want [third]", got)
	}
	if _, err := os.Stat(path); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("os.Stat() after exhaustion error = %v, want not exist", err)
	}
}

func TestDrain_LastRecordWithoutNewline(t *testing.T) {
	path := writeQueueFile(t, "a1\nb2")

	got, err := Drain(context.Background(), path)
	if err != nil {
		t.Fatalf("Drain() error: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"a1\n", "b2"}) {
		t.Fatalf("Drain() = %q", got)
	}
	if data := readQueueFile(t, path); data != "@5 b2" {
		t.Errorf("file = %q, want %q", data, "@5 b2")
	}
}

func TestDrain_EmptyFile(t *testing.T) {
	path := writeQueueFile(t, "")

	got, err := Drain(context.Background(), path, WithDeleteOnEmpty(true))
	if err != nil {
		t.Fatalf("Drain() error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("Drain() = %q, want nothing", got)
	}
	if data := readQueueFile(t, path); data != "" {
		t.Errorf("empty file was written: %q", data)
	}
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "missing.txt"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("Open() error = %v, want not exist", err)
	}
}

func TestOpen_Directory(t *testing.T) {
	if _, err := Open(context.Background(), t.TempDir()); err == nil {
		t.Fatal("Open() on a directory succeeded")
	}
}

func TestOpen_MalformedHeader(t *testing.T) {
	const content = "@abc\nrecord\n"
	path := writeQueueFile(t, content)

	_, err := Open(context.Background(), path)
	if !errors.Is(err, ErrMalformedHeader) {
		t.Fatalf("Open() error = %v, want ErrMalformedHeader", err)
	}
	if data := readQueueFile(t, path); data != content {
		t.Errorf("file changed after failed open: %q", data)
	}
}

func TestPass_BreakCommitsConsumedRecords(t *testing.T) {
	path := writeQueueFile(t, "first line\nsecond line\nthird line\n")

	p, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}

	var got []string
	for record := range p.Records() {
		got = append(got, record)
		break
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	if !reflect.DeepEqual(got, []string{"first line\n"}) {
		t.Fatalf("Records() = %q", got)
	}

	state, err := Inspect(path)
	if err != nil {
		t.Fatalf("Inspect() error: %v", err)
	}
	if state.Offset != int64(len("first line\n")) {
		t.Errorf("offset after break = %d, want %d", state.Offset, len("first line\n"))
	}

	summary := p.Summary()
	if summary.Records != 1 || summary.FromOffset != 0 || summary.ToOffset != 11 || summary.Exhausted {
		t.Errorf("Summary() = %+v", summary)
	}
}

func TestPass_PanicInLoopStillCommits(t *testing.T) {
	path := writeQueueFile(t, "first line\nsecond line\n")

	p, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic from loop body")
			}
		}()
		for range p.Records() {
			panic("consumer failed")
		}
	}()

	state, err := Inspect(path)
	if err != nil {
		t.Fatalf("Inspect() error: %v", err)
	}
	if state.Offset != 11 {
		t.Errorf("offset after panic = %d, want 11", state.Offset)
	}
}

func TestPass_HeaderOverflowFailsLoudly(t *testing.T) {
	const content = "a\nb\nc\nd\ne\n"
	path := writeQueueFile(t, content)

	got, err := Drain(context.Background(), path, WithLimit(1))
	if !errors.Is(err, ErrHeaderOverflow) {
		t.Fatalf("Drain() error = %v, want ErrHeaderOverflow", err)
	}
	if !reflect.DeepEqual(got, []string{"a\n"}) {
		t.Errorf("Drain() = %q, want [a]", got)
	}
	if data := readQueueFile(t, path); data != content {
		t.Errorf("file changed after overflow: %q", data)
	}
}

func TestPass_RecordsSingleUse(t *testing.T) {
	path := writeQueueFile(t, "one\ntwo\nthree\nfour\n")

	p, err := Open(context.Background(), path, WithLimit(1))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	for range p.Records() {
	}

	count := 0
	for range p.Records() {
		count++
	}
	if count != 0 {
		t.Errorf("second Records() produced %d records", count)
	}
	if !errors.Is(p.Err(), ErrPassUsed) {
		t.Errorf("Err() = %v, want ErrPassUsed", p.Err())
	}
}

func TestPass_ContextCancelled(t *testing.T) {
	const content = "one\ntwo\nthree\nfour\n"
	path := writeQueueFile(t, content)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := Drain(ctx, path)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Drain() error = %v, want context.Canceled", err)
	}
	if len(got) != 0 {
		t.Errorf("Drain() = %q, want nothing", got)
	}
	if data := readQueueFile(t, path); data != content {
		t.Errorf("file changed after cancelled pass: %q", data)
	}
}

func TestPass_CloseWithoutIterating(t *testing.T) {
	const content = "one\ntwo\n"
	path := writeQueueFile(t, content)

	p, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close() error: %v", err)
	}
	if data := readQueueFile(t, path); data != content {
		t.Errorf("file changed: %q", data)
	}
}

func TestWithHeaderWidth(t *testing.T) {
	path := writeQueueFile(t, "abcde\nfghij\nklmno\npqrst")
	ctx := context.Background()

	if _, err := Drain(ctx, path, WithLimit(2), WithHeaderWidth(8)); err != nil {
		t.Fatalf("Drain() error: %v", err)
	}
	if data := readQueueFile(t, path); data[:8] != "@12     " {
		t.Fatalf("header = %q, want %q", data[:8], "@12     ")
	}

	// A narrower width never shrinks a committed header.
	if _, err := Drain(ctx, path, WithLimit(1), WithHeaderWidth(3)); err != nil {
		t.Fatalf("Drain() error: %v", err)
	}
	data := readQueueFile(t, path)
	if data[:4] != "@18 " {
		t.Fatalf("header = %q, want prefix %q", data[:8], "@18 ")
	}
	if data[18:] != "pqrst" {
		t.Errorf("unread body = %q, want %q", data[18:], "pqrst")
	}
}
