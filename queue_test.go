package recipeauth

import (
	"fmt"
	"sync"
	"testing"
)

func TestEventQueueOrderAndClose(t *testing.T) {
	q := newEventQueue()
	for i := 0; i < 100; i++ {
		q.push(event{user: &User{ID: fmt.Sprint(i)}})
	}
	q.close()
	if q.push(event{}) {
		t.Error("push after close should report false")
	}

	for i := 0; i < 100; i++ {
		e, ok := q.next()
		if !ok {
			t.Fatalf("Queue closed early at %d", i)
		}
		if e.user.ID != fmt.Sprint(i) {
			t.Fatalf("Expected event %d, got %s", i, e.user.ID)
		}
	}
	if _, ok := q.next(); ok {
		t.Error("Expected the drained, closed queue to report false")
	}
}

func TestEventQueueConcurrentProducers(t *testing.T) {
	q := newEventQueue()
	const producers, perProducer = 8, 200

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.push(event{user: &User{ID: fmt.Sprintf("%d-%d", p, i)}})
			}
		}(p)
	}

	done := make(chan map[string]int)
	go func() {
		last := make(map[string]int)
		count := 0
		for {
			e, ok := q.next()
			if !ok {
				break
			}
			var p, i int
			fmt.Sscanf(e.user.ID, "%d-%d", &p, &i)
			key := fmt.Sprint(p)
			if prev, seen := last[key]; seen && i != prev+1 {
				t.Errorf("Producer %d out of order: %d after %d", p, i, prev)
			}
			last[key] = i
			count++
		}
		last["count"] = count
		done <- last
	}()

	wg.Wait()
	q.close()
	got := <-done
	if got["count"] != producers*perProducer {
		t.Errorf("Expected %d events, got %d", producers*perProducer, got["count"])
	}
}
