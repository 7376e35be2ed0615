package deferred

import "testing"

type testEntry struct {
	key string
	seq int
}

func (e *testEntry) less(other *testEntry) bool {
	if e.key != other.key {
		return e.key < other.key
	}

	return e.seq < other.seq
}

func TestPriorityQueue(t *testing.T) {
	t.Run("Overall", func(t *testing.T) {
		var pq priorityqueue[*testEntry]

		for _, r := range "abcdefgh" {
			pq.Push(&testEntry{key: string(r)})
		}

		for _, r := range "abcd" {
			if u := pq.Pop(); u.key != string(r) {
				t.FailNow()
			}
		}

		for _, r := range "ijk" {
			pq.Push(&testEntry{key: string(r)})
		}

		pq.Push(&testEntry{key: "d"})

		if u := pq.Pop(); u.key != "d" {
			t.FailNow()
		}

		pq.Push(&testEntry{key: "g"})
		pq.Push(&testEntry{key: "f"})

		for _, r := range "effgghijk" {
			if u := pq.Pop(); u.key != string(r) {
				t.FailNow()
			}
		}

		if !pq.Empty() {
			t.FailNow()
		}
	})
	t.Run("FIFO", func(t *testing.T) {
		var pq priorityqueue[*testEntry]

		u := &testEntry{key: "/", seq: 0}
		v := &testEntry{key: "/", seq: 1}
		w := &testEntry{key: "/", seq: 2}

		pq.Push(u)
		pq.Push(v)
		pq.Push(w)

		if pq.Pop() != u || pq.Pop() != v || pq.Pop() != w {
			t.FailNow()
		}
	})
}
