// internal/crawler/lru.go
//
// Tiny LRU used to memoise classification verdicts per User-Agent string.
// Not safe for concurrent use; the Classifier guards it with a mutex.
package crawler

import "container/list"

type lru struct {
	cap  int
	ll   *list.List
	dict map[string]*list.Element
}

type pair struct {
	key string
	val bool
}

// newLRU returns an lru with the given capacity.  Panics on cap < 1.
func newLRU(capacity int) *lru {
	if capacity < 1 {
		panic("crawler: lru capacity must be ≥1")
	}
	return &lru{
		cap:  capacity,
		ll:   list.New(),
		dict: make(map[string]*list.Element, capacity),
	}
}

// get retrieves a verdict and marks it MRU.
func (c *lru) get(key string) (val, ok bool) {
	if ele, hit := c.dict[key]; hit {
		c.ll.MoveToFront(ele)
		return ele.Value.(pair).val, true
	}
	return false, false
}

// add inserts or updates a verdict, evicting the LRU entry past capacity.
func (c *lru) add(key string, val bool) {
	if ele, hit := c.dict[key]; hit {
		ele.Value = pair{key, val}
		c.ll.MoveToFront(ele)
		return
	}
	ele := c.ll.PushFront(pair{key, val})
	c.dict[key] = ele
	if c.ll.Len() > c.cap {
		last := c.ll.Back()
		c.ll.Remove(last)
		delete(c.dict, last.Value.(pair).key)
	}
}

func (c *lru) len() int { return c.ll.Len() }
