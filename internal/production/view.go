package production

// ViewItem is a plan item after overrides.
type ViewItem struct {
	Name      string `json:"name"`
	Demand    int64  `json:"demand"`
	Stock     int64  `json:"stock"`
	Suggested int64  `json:"suggested"`
	ToProduce int64  `json:"to_produce"`
	Adjusted  bool   `json:"adjusted"`
}

// PointView is one point's items after overrides.
type PointView struct {
	PointName      string     `json:"point_name"`
	Items          []ViewItem `json:"items"`
	TotalToProduce int64      `json:"total_to_produce"`
}

// View is what the planner sees: the raw plan with blacklisted names removed
// and adjusted quantities applied. Totals are recomputed every time.
type View struct {
	Plan      Plan        `json:"-"`
	Date      string      `json:"date"`
	Point     string      `json:"point,omitempty"`
	Points    []PointView `json:"points"`
	Blacklist []string    `json:"blacklist"`
}

// Apply builds the view without touching plan.
func Apply(plan Plan, o *Overrides) View {
	if o == nil {
		o = &Overrides{}
	}
	view := View{
		Plan:      plan,
		Date:      plan.Date.String(),
		Point:     plan.Point,
		Points:    make([]PointView, 0, len(plan.Points)),
		Blacklist: o.Blacklist(),
	}
	for _, p := range plan.Points {
		pv := PointView{PointName: p.PointName, Items: make([]ViewItem, 0, len(p.Items))}
		for _, item := range p.Items {
			if o.Blacklisted(item.Name) {
				continue
			}
			qty, adjusted := o.Quantity(AdjustmentKey{Point: p.PointName, Product: item.Name}, item.ToProduce)
			pv.Items = append(pv.Items, ViewItem{
				Name:      item.Name,
				Demand:    item.Demand,
				Stock:     item.Stock,
				Suggested: item.ToProduce,
				ToProduce: qty,
				Adjusted:  adjusted,
			})
			pv.TotalToProduce += qty
		}
		view.Points = append(view.Points, pv)
	}
	return view
}

// Suggestion finds the unadjusted to-produce value for key in plan.
func (p Plan) Suggestion(key AdjustmentKey) (int64, bool) {
	for _, point := range p.Points {
		if point.PointName != key.Point {
			continue
		}
		for _, item := range point.Items {
			if item.Name == key.Product {
				return item.ToProduce, true
			}
		}
	}
	return 0, false
}
