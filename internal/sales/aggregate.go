package sales

import "math"

// quantityScale is the finest quantity step kept when merging: one gram for
// goods sold by weight.
const quantityScale = 1000

func addQuantity(a, b float64) float64 {
	return math.Round((a+b)*quantityScale) / quantityScale
}

// itemSet merges line items by product name, keeping first-occurrence order.
type itemSet struct {
	index map[string]int
	items []LineItem
}

func newItemSet() *itemSet {
	return &itemSet{index: make(map[string]int)}
}

func (s *itemSet) add(item LineItem) {
	if i, ok := s.index[item.Name]; ok {
		s.items[i].Quantity = addQuantity(s.items[i].Quantity, item.Quantity)
		s.items[i].TotalAmount += item.TotalAmount
		return
	}
	s.index[item.Name] = len(s.items)
	s.items = append(s.items, item)
}

func (s *itemSet) summary(name string) PointSummary {
	out := PointSummary{PointName: name, Items: s.items}
	if out.Items == nil {
		out.Items = []LineItem{}
	}
	out.Recompute()
	return out
}

// ForPoint merges every summary reported for point into one.
func ForPoint(point string, summaries []PointSummary) PointSummary {
	set := newItemSet()
	for _, s := range summaries {
		if s.PointName != point {
			continue
		}
		for _, item := range s.Items {
			set.add(item)
		}
	}
	return set.summary(point)
}

// AllPoints merges every summary into one named AllPointsName.
func AllPoints(summaries []PointSummary) PointSummary {
	set := newItemSet()
	for _, s := range summaries {
		for _, item := range s.Items {
			set.add(item)
		}
	}
	return set.summary(AllPointsName)
}

// GroupByPoint merges summaries per point name. Points keep the order in
// which they first appear.
func GroupByPoint(summaries []PointSummary) []PointSummary {
	order := make([]string, 0)
	sets := make(map[string]*itemSet)
	for _, s := range summaries {
		set, ok := sets[s.PointName]
		if !ok {
			set = newItemSet()
			sets[s.PointName] = set
			order = append(order, s.PointName)
		}
		for _, item := range s.Items {
			set.add(item)
		}
	}
	out := make([]PointSummary, 0, len(order))
	for _, name := range order {
		out = append(out, sets[name].summary(name))
	}
	return out
}

// Summarize picks per-point or all-points aggregation. An empty point means
// the whole chain.
func Summarize(point string, summaries []PointSummary) PointSummary {
	if point == "" {
		return AllPoints(summaries)
	}
	return ForPoint(point, summaries)
}

// Flatten concatenates the day batches in fetch order.
func Flatten(days []DaySales) []PointSummary {
	n := 0
	for _, d := range days {
		n += len(d.Points)
	}
	out := make([]PointSummary, 0, n)
	for _, d := range days {
		out = append(out, d.Points...)
	}
	return out
}
