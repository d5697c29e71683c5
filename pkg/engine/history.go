package engine

import . "github.com/ChizhovVadim/CounterLearn/pkg/common"

const historyMax = 1 << 14

type historyService struct {
	table [2][64 * 64]int16
}

func sideIndex(side bool) int {
	if side {
		return 0
	}
	return 1
}

func fromToIndex(m Move) int {
	return m.From()<<6 | m.To()
}

func (h *historyService) Clear() {
	for i := range h.table {
		for j := range h.table[i] {
			h.table[i][j] = 0
		}
	}
}

func (h *historyService) Read(side bool, m Move) int {
	return int(h.table[sideIndex(side)][fromToIndex(m)])
}

func (h *historyService) Update(side bool, quietsSearched []Move, bestMove Move, depth int) {
	var bonus = Min(depth*depth, 400)
	var table = &h.table[sideIndex(side)]
	for _, m := range quietsSearched {
		updateHistory(&table[fromToIndex(m)], bonus, m == bestMove)
	}
}

func updateHistory(v *int16, bonus int, good bool) {
	var newVal int
	if good {
		newVal = historyMax
	} else {
		newVal = -historyMax
	}
	*v += int16((newVal - int(*v)) * bonus / 512)
}
