package match

import "testing"

func TestHungarianAssign_Empty(t *testing.T) {
	if result := hungarianAssign(nil); result != nil {
		t.Errorf("expected nil for empty cost matrix, got %v", result)
	}
}

func TestHungarianAssign_NoColumns(t *testing.T) {
	result := hungarianAssign([][]float64{{}, {}})
	if len(result) != 2 || result[0] != -1 || result[1] != -1 {
		t.Errorf("expected [-1 -1], got %v", result)
	}
}

func TestHungarianAssign_SquareOptimal(t *testing.T) {
	//   [.1 .2 .3]     optimal: 0->0, 1->1, 2->2 = 1.0
	//   [.4 .4 .6]
	//   [.9 .8 .5]
	cost := [][]float64{
		{0.1, 0.2, 0.3},
		{0.4, 0.4, 0.6},
		{0.9, 0.8, 0.5},
	}
	result := hungarianAssign(cost)
	if len(result) != 3 {
		t.Fatalf("expected 3 assignments, got %d", len(result))
	}

	total := 0.0
	for i, j := range result {
		if j < 0 {
			t.Fatalf("row %d unassigned", i)
		}
		total += cost[i][j]
	}
	if total < 0.999 || total > 1.001 {
		t.Errorf("expected optimal cost 1.0, got %v (assignments: %v)", total, result)
	}
}

func TestHungarianAssign_Forbidden(t *testing.T) {
	cost := [][]float64{
		{0.1, 0.2},
		{forbiddenCost, forbiddenCost},
	}
	result := hungarianAssign(cost)
	if result[0] < 0 {
		t.Errorf("row 0 should be assigned, got %d", result[0])
	}
	if result[1] != -1 {
		t.Errorf("row 1 should be unassigned, got %d", result[1])
	}
}

func TestHungarianAssign_PrefersMoreValidPairs(t *testing.T) {
	// Row 0 could take column 0 cheaply, but then row 1 has nothing left.
	cost := [][]float64{
		{0.0, 0.9},
		{0.1, forbiddenCost},
	}
	result := hungarianAssign(cost)
	if result[0] != 1 || result[1] != 0 {
		t.Errorf("expected [1 0], got %v", result)
	}
}

func TestHungarianAssign_MoreRowsThanCols(t *testing.T) {
	cost := [][]float64{
		{0.1, 0.9},
		{0.9, 0.1},
		{0.5, 0.5},
	}
	result := hungarianAssign(cost)
	if result[0] != 0 || result[1] != 1 || result[2] != -1 {
		t.Errorf("expected [0 1 -1], got %v", result)
	}
}
