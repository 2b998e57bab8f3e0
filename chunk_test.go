package signalcore

import (
	"bytes"
	"errors"
	"testing"
)

func chunksOf(c *Chunker) [][]byte { return c.Chunks() }

func TestChunkerLiteralVectors(t *testing.T) {
	cases := []struct {
		name string
		buf  []byte
		size int
		want [][]byte
	}{
		{"C3", []byte{1, 2, 3, 4, 5, 6}, 3, [][]byte{{1, 1, 2}, {1, 3, 4}, {0, 5, 6}}},
		{"C5", []byte{1, 2, 3, 4, 5, 6}, 5, [][]byte{{1, 1, 2, 3, 4}, {0, 5, 6}}},
		{"C99", []byte{1, 2}, 99, [][]byte{{0, 1, 2}}},
		{"C2", []byte{1, 2, 3}, 2, [][]byte{{1, 1}, {1, 2}, {0, 3}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := NewChunker(tc.buf, tc.size)
			if err != nil {
				t.Fatalf("NewChunker: %v", err)
			}
			got := chunksOf(c)
			if len(got) != len(tc.want) {
				t.Fatalf("got %d chunks, want %d", len(got), len(tc.want))
			}
			for i := range got {
				if !bytes.Equal(got[i], tc.want[i]) {
					t.Fatalf("chunk %d = %v, want %v", i, got[i], tc.want[i])
				}
			}
			// Restartable: calling Chunks() again yields the same sequence.
			again := chunksOf(c)
			for i := range again {
				if !bytes.Equal(again[i], got[i]) {
					t.Fatalf("Chunks() not restartable at index %d", i)
				}
			}
		})
	}
}

func TestChunkerRejectsInvalidArguments(t *testing.T) {
	if _, err := NewChunker(nil, 5); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("empty buf: got %v, want ErrInvalidArgument", err)
	}
	if _, err := NewChunker([]byte{1}, 1); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("size<2: got %v, want ErrInvalidArgument", err)
	}
}

func TestChunkDechunkRoundTrip(t *testing.T) {
	bufs := [][]byte{
		{1, 2, 3, 4, 5, 6},
		{1, 2},
		{1, 2, 3},
		bytes.Repeat([]byte{0x42}, 1000),
	}
	sizes := []int{2, 3, 5, 16, 99}
	for _, buf := range bufs {
		for _, size := range sizes {
			c, err := NewChunker(buf, size)
			if err != nil {
				t.Fatalf("NewChunker: %v", err)
			}
			chunks := c.Chunks()
			wantCount := (len(buf) + size - 2) / (size - 1)
			if len(chunks) != wantCount {
				t.Fatalf("chunk count = %d, want %d (buf=%d size=%d)", len(chunks), wantCount, len(buf), size)
			}
			d := NewDechunker()
			var complete bool
			for i, chunk := range chunks {
				complete, err = d.Add(chunk)
				if err != nil {
					t.Fatalf("Add: %v", err)
				}
				if i < len(chunks)-1 {
					if complete {
						t.Fatalf("chunk %d reported complete early", i)
					}
					if chunk[0] != chunkFlagMore {
						t.Fatalf("chunk %d flag = %#x, want more", i, chunk[0])
					}
					if len(chunk) != size {
						t.Fatalf("chunk %d size = %d, want %d", i, len(chunk), size)
					}
				} else {
					if !complete {
						t.Fatalf("last chunk did not report complete")
					}
					if chunk[0] != chunkFlagTerminal {
						t.Fatalf("last chunk flag = %#x, want terminal", chunk[0])
					}
				}
			}
			merged, err := d.Merge()
			if err != nil {
				t.Fatalf("Merge: %v", err)
			}
			if !bytes.Equal(merged, buf) {
				t.Fatalf("merged = %v, want %v", merged, buf)
			}
		}
	}
}

func TestDechunkerRejectsInvalidFlag(t *testing.T) {
	d := NewDechunker()
	if _, err := d.Add([]byte{0x02, 1, 2}); !errors.Is(err, ErrInvalidChunk) {
		t.Fatalf("got %v, want ErrInvalidChunk", err)
	}
}

func TestDechunkerIgnoresEmptyChunks(t *testing.T) {
	d := NewDechunker()
	complete, err := d.Add(nil)
	if err != nil {
		t.Fatalf("Add(empty): %v", err)
	}
	if complete {
		t.Fatalf("empty chunk reported complete")
	}
	complete, err = d.Add([]byte{0x00})
	if err != nil || !complete {
		t.Fatalf("terminal chunk failed: complete=%v err=%v", complete, err)
	}
}

func TestDechunkerAddAfterCompleteFails(t *testing.T) {
	d := NewDechunker()
	if _, err := d.Add([]byte{0x00, 1}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := d.Add([]byte{0x00, 2}); !errors.Is(err, ErrAlreadyComplete) {
		t.Fatalf("got %v, want ErrAlreadyComplete", err)
	}
}

func TestDechunkerMergeBeforeCompleteFails(t *testing.T) {
	d := NewDechunker()
	if _, err := d.Add([]byte{0x01, 1, 2}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := d.Merge(); !errors.Is(err, ErrNotComplete) {
		t.Fatalf("got %v, want ErrNotComplete", err)
	}
}

func TestDechunkerMergeIsIdempotent(t *testing.T) {
	d := NewDechunker()
	if _, err := d.Add([]byte{0x00, 9, 9}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	first, err := d.Merge()
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	second, err := d.Merge()
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("Merge not idempotent: %v != %v", first, second)
	}
}
