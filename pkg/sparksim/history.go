package sparksim

import "github.com/chicogong/dgx-telemetry-sim/pkg/models"

// history is a fixed-capacity ring of terminal applications, oldest first
type history struct {
	items []*models.Application
	start int
	size  int
}

func newHistory(capacity int) *history {
	if capacity < 1 {
		capacity = 1
	}
	return &history{items: make([]*models.Application, capacity)}
}

// push appends app and returns the evicted entry, if any
func (h *history) push(app *models.Application) *models.Application {
	capacity := len(h.items)
	if h.size < capacity {
		h.items[(h.start+h.size)%capacity] = app
		h.size++
		return nil
	}

	evicted := h.items[h.start]
	h.items[h.start] = app
	h.start = (h.start + 1) % capacity
	return evicted
}

// at returns the i-th entry counting from the oldest
func (h *history) at(i int) *models.Application {
	return h.items[(h.start+i)%len(h.items)]
}

// recent returns up to n newest entries, oldest first
func (h *history) recent(n int) []*models.Application {
	if n > h.size {
		n = h.size
	}
	out := make([]*models.Application, 0, n)
	for i := h.size - n; i < h.size; i++ {
		out = append(out, h.at(i))
	}
	return out
}

func (h *history) find(id string) *models.Application {
	for i := h.size - 1; i >= 0; i-- {
		if app := h.at(i); app.ID == id {
			return app
		}
	}
	return nil
}

func (h *history) len() int {
	return h.size
}
