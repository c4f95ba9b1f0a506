package storage

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	logx "crierd/pkg/logx"
)

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"", "none", " NONE "} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil || st != nil {
			t.Fatalf("Open(%q) = %v, %v; want nil, nil", driver, st, err)
		}
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "redis", Path: "x"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestJournalDrivers(t *testing.T) {
	t.Parallel()
	tests := []struct {
		driver string
		file   string
	}{
		{driver: "file", file: "journal.jsonl"},
		{driver: "sqlite", file: "journal.db"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.driver, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), "nested", tt.file)
			st, err := Open(Config{Driver: tt.driver, Path: path, BusyTimeout: time.Second}, logx.Nop())
			if err != nil {
				t.Fatalf("Open: %v", err)
			}

			base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
			for i := 0; i < 5; i++ {
				f := Failure{
					At:    base.Add(time.Duration(i) * time.Second),
					Task:  "t" + strconv.Itoa(i),
					Error: "boom " + strconv.Itoa(i),
					Panic: i == 4,
				}
				if f.Panic {
					f.Stack = "goroutine 1 [running]"
				}
				if err := st.AppendFailure(ctx, f); err != nil {
					t.Fatalf("AppendFailure #%d: %v", i, err)
				}
			}

			got, err := st.Recent(ctx, 3)
			if err != nil {
				t.Fatalf("Recent: %v", err)
			}
			if len(got) != 3 {
				t.Fatalf("Recent returned %d records, want 3", len(got))
			}
			if got[0].Task != "t4" || got[2].Task != "t2" {
				t.Fatalf("unexpected order: %+v", got)
			}
			if !got[0].Panic || got[0].Stack == "" {
				t.Fatalf("panic record lost fields: %+v", got[0])
			}
			if !got[1].At.Equal(base.Add(3 * time.Second)) {
				t.Fatalf("At = %v, want %v", got[1].At, base.Add(3*time.Second))
			}

			if err := st.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}
		})
	}
}

func TestStoreClosed(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"file", "sqlite"} {
		driver := driver
		t.Run(driver, func(t *testing.T) {
			t.Parallel()
			st, err := Open(Config{Driver: driver, Path: filepath.Join(t.TempDir(), "j")}, logx.Nop())
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			_ = st.Close()
			if err := st.AppendFailure(context.Background(), Failure{Task: "x"}); !errors.Is(err, ErrClosed) {
				t.Fatalf("append err = %v, want ErrClosed", err)
			}
			if _, err := st.Recent(context.Background(), 1); !errors.Is(err, ErrClosed) {
				t.Fatalf("recent err = %v, want ErrClosed", err)
			}
			if err := st.Close(); err != nil {
				t.Fatalf("second Close: %v", err)
			}
		})
	}
}

func TestSQLiteRetention(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st, err := Open(Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "j.db"), Retention: time.Hour}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()
	st.(*sqliteStore).pruneEvery = 1

	if err := st.AppendFailure(ctx, Failure{At: time.Now().Add(-2 * time.Hour), Task: "old", Error: "x"}); err != nil {
		t.Fatalf("append old: %v", err)
	}
	if err := st.AppendFailure(ctx, Failure{Task: "new", Error: "y"}); err != nil {
		t.Fatalf("append new: %v", err)
	}
	got, err := st.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 1 || got[0].Task != "new" {
		t.Fatalf("after prune = %+v, want only the new record", got)
	}
}

func TestSQLitePruneSubSecond(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st, err := Open(Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "j.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	base := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	for i, at := range []time.Time{base, base.Add(500 * time.Millisecond)} {
		if err := st.AppendFailure(ctx, Failure{At: at, Task: "t" + strconv.Itoa(i), Error: "x"}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := st.(*sqliteStore).pruneBefore(ctx, base.Add(250*time.Millisecond)); err != nil {
		t.Fatalf("prune: %v", err)
	}
	got, err := st.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 1 || got[0].Task != "t1" || !got[0].At.Equal(base.Add(500*time.Millisecond)) {
		t.Fatalf("after prune = %+v, want only t1", got)
	}
}
