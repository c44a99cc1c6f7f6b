package queue

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"tunemux/model"
)

func tr(id string) model.Track {
	return model.Track{ID: id, Source: model.SourceAudius, Title: id}
}

func filled(ids ...string) *Queue {
	q := New(WithRand(rand.New(rand.NewSource(7))))
	for _, id := range ids {
		q.Add(tr(id))
	}
	return q
}

func order(q *Queue) []string {
	snap := q.Snapshot()
	out := make([]string, len(snap.Tracks))
	for i, t := range snap.Tracks {
		out[i] = t.ID
	}
	return out
}

func checkInvariant(t *testing.T, q *Queue) {
	t.Helper()
	snap := q.Snapshot()
	n := len(snap.Tracks)
	if n == 0 && snap.CurrentIndex != -1 {
		t.Fatalf("empty queue with current %d", snap.CurrentIndex)
	}
	if n > 0 && (snap.CurrentIndex < 0 || snap.CurrentIndex >= n) {
		t.Fatalf("current %d out of range for %d tracks", snap.CurrentIndex, n)
	}
}

func TestAddSelectsFirstTrack(t *testing.T) {
	q := New()
	if q.Snapshot().CurrentIndex != -1 {
		t.Fatal("new queue should have no current track")
	}
	q.Add(tr("a"))
	q.Add(tr("b"))
	if got := q.Snapshot().CurrentIndex; got != 0 {
		t.Errorf("current = %d, want 0", got)
	}
}

func TestPlayNowSelectsAppended(t *testing.T) {
	q := filled("a", "b")
	idx := q.PlayNow(tr("c"))
	cur, _ := q.Current()
	if idx != 2 || cur.ID != "c" {
		t.Errorf("idx = %d, current = %s", idx, cur.ID)
	}
}

func TestInsertNext(t *testing.T) {
	q := filled("a", "b", "c")
	q.Select(1)
	q.InsertNext(tr("x"))
	if got := fmt.Sprint(order(q)); got != "[a b x c]" {
		t.Errorf("order = %s", got)
	}
	if q.Snapshot().CurrentIndex != 1 {
		t.Error("cursor moved")
	}

	empty := New()
	empty.InsertNext(tr("solo"))
	if cur, ok := empty.Current(); !ok || cur.ID != "solo" {
		t.Errorf("insert into empty: %v %v", cur, ok)
	}
}

func TestRemoveCursorRules(t *testing.T) {
	cases := []struct {
		name    string
		current int
		remove  int
		want    int
	}{
		{"before current", 2, 0, 1},
		{"current in middle", 1, 1, 1},
		{"current at end clamps", 2, 2, 1},
		{"after current", 0, 2, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			q := filled("a", "b", "c")
			q.Select(c.current)
			wasCurrent, cursor, ok := q.Remove(c.remove)
			if !ok {
				t.Fatal("remove reported no-op")
			}
			if wasCurrent != (c.remove == c.current) {
				t.Errorf("wasCurrent = %v", wasCurrent)
			}
			if got := q.Snapshot().CurrentIndex; got != c.want || cursor != c.want {
				t.Errorf("current = %d, reported %d, want %d", got, cursor, c.want)
			}
		})
	}

	q := filled("only")
	if wasCurrent, cursor, _ := q.Remove(0); !wasCurrent || cursor != -1 {
		t.Errorf("removing last track = %v, %d", wasCurrent, cursor)
	}
	if got := q.Snapshot().CurrentIndex; got != -1 {
		t.Errorf("removing last track left current = %d", got)
	}
	if _, _, ok := q.Remove(0); ok {
		t.Error("remove on empty queue reported success")
	}
}

func TestReorderCursorLaw(t *testing.T) {
	for n := 1; n <= 5; n++ {
		for cur := 0; cur < n; cur++ {
			for from := 0; from < n; from++ {
				for to := 0; to < n; to++ {
					ids := make([]string, n)
					for i := range ids {
						ids[i] = fmt.Sprintf("t%d", i)
					}
					q := filled(ids...)
					q.Select(cur)
					before, _ := q.Current()

					q.Reorder(from, to)

					after, ok := q.Current()
					if !ok || after.ID != before.ID {
						t.Fatalf("n=%d cur=%d from=%d to=%d: current track changed from %s to %s",
							n, cur, from, to, before.ID, after.ID)
					}
				}
			}
		}
	}
}

func TestReorderMovesTrack(t *testing.T) {
	q := filled("a", "b", "c", "d")
	q.Reorder(0, 2)
	if got := fmt.Sprint(order(q)); got != "[b c a d]" {
		t.Errorf("forward = %s", got)
	}
	q.Reorder(3, 0)
	if got := fmt.Sprint(order(q)); got != "[d b c a]" {
		t.Errorf("backward = %s", got)
	}
	if q.Reorder(0, 9) {
		t.Error("out-of-range reorder reported success")
	}
}

func TestAdvanceSequential(t *testing.T) {
	q := filled("a", "b")
	if s := q.Advance(); s.Action != ActionPlay || s.Index != 1 {
		t.Errorf("first advance = %+v", s)
	}
	if s := q.Advance(); s.Action != ActionStop || s.Index != 1 {
		t.Errorf("advance at end = %+v", s)
	}
	checkInvariant(t, q)

	q.SetRepeat(RepeatAll)
	if s := q.Advance(); s.Action != ActionPlay || s.Index != 0 {
		t.Errorf("repeat all wrap = %+v", s)
	}

	q.SetRepeat(RepeatOne)
	if s := q.Advance(); s.Action != ActionRestart || s.Index != 0 {
		t.Errorf("repeat one = %+v", s)
	}

	if s := New().Advance(); s.Action != ActionStop {
		t.Errorf("empty advance = %+v", s)
	}
}

func TestAdvanceShuffleNeverRepeatsCurrent(t *testing.T) {
	q := filled("a", "b", "c", "d", "e")
	q.SetShuffle(true)
	seen := map[int]bool{}
	for i := 0; i < 500; i++ {
		before := q.Snapshot().CurrentIndex
		s := q.Advance()
		if s.Action != ActionPlay || s.Index == before {
			t.Fatalf("shuffle advance from %d = %+v", before, s)
		}
		seen[s.Index] = true
	}
	if len(seen) != 5 {
		t.Errorf("shuffle reached %d of 5 indices", len(seen))
	}
}

func TestAdvanceShuffleSingleTrack(t *testing.T) {
	q := filled("a")
	q.SetShuffle(true)
	if s := q.Advance(); s.Action != ActionStop || s.Index != 0 {
		t.Errorf("single-track shuffle = %+v", s)
	}
	q.SetRepeat(RepeatAll)
	if s := q.Advance(); s.Action != ActionPlay || s.Index != 0 {
		t.Errorf("single-track shuffle with repeat all = %+v", s)
	}
}

func TestPrevious(t *testing.T) {
	q := filled("a", "b", "c")
	q.Select(2)

	if s := q.Previous(5 * time.Second); s.Action != ActionRestart || s.Index != 2 {
		t.Errorf("late previous = %+v", s)
	}
	if s := q.Previous(3 * time.Second); s.Action != ActionPlay || s.Index != 1 {
		t.Errorf("previous at exactly 3s = %+v", s)
	}
	q.Previous(0)
	if s := q.Previous(time.Second); s.Action != ActionNone || s.Index != 0 {
		t.Errorf("previous at first track = %+v", s)
	}
}

func TestSubscribersSeeEveryChange(t *testing.T) {
	q := New()
	var snaps []Snapshot
	unsubscribe := q.Subscribe(func(s Snapshot) { snaps = append(snaps, s) })

	q.Add(tr("a"))
	q.Add(tr("b"))
	q.Select(1)
	q.Select(1) // no change
	q.SetRepeat(RepeatOne)
	q.Advance() // restart, no change

	if len(snaps) != 4 {
		t.Fatalf("events = %d, want 4", len(snaps))
	}
	if last := snaps[len(snaps)-1]; last.Repeat != RepeatOne || last.CurrentIndex != 1 {
		t.Errorf("last snapshot = %+v", last)
	}

	unsubscribe()
	q.Clear()
	if len(snaps) != 4 {
		t.Error("unsubscribed callback still called")
	}
}

func TestInvariantUnderRandomOperations(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	q := New(WithRand(rand.New(rand.NewSource(1))))
	next := 0

	for step := 0; step < 5000; step++ {
		n := q.Len()
		switch rng.Intn(10) {
		case 0, 1:
			q.Add(tr(fmt.Sprint(next)))
			next++
		case 2:
			q.PlayNow(tr(fmt.Sprint(next)))
			next++
		case 3:
			q.InsertNext(tr(fmt.Sprint(next)))
			next++
		case 4:
			q.Remove(rng.Intn(n + 2))
		case 5:
			q.Reorder(rng.Intn(n+1), rng.Intn(n+1))
		case 6:
			q.Advance()
		case 7:
			q.Previous(time.Duration(rng.Intn(6)) * time.Second)
		case 8:
			q.SetShuffle(rng.Intn(2) == 0)
			q.SetRepeat([]RepeatMode{RepeatOff, RepeatAll, RepeatOne}[rng.Intn(3)])
		case 9:
			if rng.Intn(20) == 0 {
				q.Clear()
			} else {
				q.Select(rng.Intn(n + 1))
			}
		}
		checkInvariant(t, q)
	}
}
