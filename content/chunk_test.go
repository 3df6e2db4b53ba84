package content

import (
	"errors"
	"testing"
)

func TestChunkRelease(t *testing.T) {
	t.Run("release once", func(t *testing.T) {
		var released int
		c := Own([]byte("foo"), false, func() { released++ })

		c.Release()
		c.Release()
		c.Release()

		if released != 1 {
			t.Errorf("released %d times, expected once", released)
		}
	})

	t.Run("copies share the guard", func(t *testing.T) {
		var released int
		c := Own([]byte("foo"), false, func() { released++ })
		d := c

		c.Release()
		d.Release()

		if released != 1 {
			t.Errorf("released %d times, expected once", released)
		}
	})

	t.Run("sentinels release to nothing", func(t *testing.T) {
		EOF().Release()
		Empty().Release()
		Fail(errors.New("failure")).Release()
		Bytes([]byte("foo"), false).Release()
	})
}

func TestChunkPredicates(t *testing.T) {
	for _, test := range []struct {
		name                 string
		chunk                Chunk
		empty, eof, terminal bool
	}{{
		name:  "empty",
		chunk: Empty(),
		empty: true,
	}, {
		name:     "eof",
		chunk:    EOF(),
		eof:      true,
		terminal: true,
	}, {
		name:     "error",
		chunk:    Fail(errors.New("failure")),
		terminal: true,
	}, {
		name:  "data",
		chunk: Bytes([]byte("foo"), false),
	}, {
		name:     "last data",
		chunk:    Bytes([]byte("foo"), true),
		terminal: true,
	}} {
		t.Run(test.name, func(t *testing.T) {
			if test.chunk.IsEmpty() != test.empty {
				t.Errorf("IsEmpty: %v, expected %v", test.chunk.IsEmpty(), test.empty)
			}

			if test.chunk.IsEOF() != test.eof {
				t.Errorf("IsEOF: %v, expected %v", test.chunk.IsEOF(), test.eof)
			}

			if test.chunk.IsTerminal() != test.terminal {
				t.Errorf("IsTerminal: %v, expected %v", test.chunk.IsTerminal(), test.terminal)
			}
		})
	}
}
