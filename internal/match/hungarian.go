package match

import "math"

// forbiddenCost marks a (reference, candidate) cell that is not a valid pair.
// hungarianAssign replaces it with a penalty larger than any achievable sum
// of valid costs, so the solver first maximizes the number of valid pairs and
// then minimizes their total cost.
const forbiddenCost = math.MaxFloat64

// hungarianAssign solves the rectangular assignment problem for an n x m cost
// matrix with the Kuhn-Munkres algorithm (Jonker-Volgenant potentials). It
// returns assignments[i] = column assigned to row i, or -1 if row i is left
// unassigned or only reachable through a forbidden cell.
//
// Valid costs are expected in [0, 1]. Ties between equal-cost solutions are
// resolved by the row and column scan order, so the result is deterministic
// for a given matrix.
func hungarianAssign(cost [][]float64) []int {
	n := len(cost)
	if n == 0 {
		return nil
	}
	m := len(cost[0])
	if m == 0 {
		result := make([]int, n)
		for i := range result {
			result[i] = -1
		}
		return result
	}

	dim := max(n, m)
	penalty := float64(dim) + 1

	// Square matrix, padded with the penalty.
	c := make([][]float64, dim)
	for i := 0; i < dim; i++ {
		c[i] = make([]float64, dim)
		for j := 0; j < dim; j++ {
			if i < n && j < m && cost[i][j] != forbiddenCost {
				c[i][j] = cost[i][j]
			} else {
				c[i][j] = penalty
			}
		}
	}

	const inf = math.MaxFloat64 / 2

	// 1-indexed; column 0 is virtual.
	u := make([]float64, dim+1)
	v := make([]float64, dim+1)
	p := make([]int, dim+1)
	way := make([]int, dim+1)
	minv := make([]float64, dim+1)
	used := make([]bool, dim+1)

	for i := 1; i <= dim; i++ {
		p[0] = i
		j0 := 0

		for j := 1; j <= dim; j++ {
			minv[j] = inf
			used[j] = false
		}

		for {
			used[j0] = true
			i0 := p[j0]
			delta := inf
			j1 := -1

			for j := 1; j <= dim; j++ {
				if used[j] {
					continue
				}
				cur := c[i0-1][j-1] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}

			if j1 < 0 {
				break
			}

			for j := 0; j <= dim; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}

			j0 = j1
			if p[j0] == 0 {
				break
			}
		}

		for j0 != 0 {
			p[j0] = p[way[j0]]
			j0 = way[j0]
		}
	}

	rowAssign := make([]int, dim)
	for i := range rowAssign {
		rowAssign[i] = -1
	}
	for j := 1; j <= dim; j++ {
		if p[j] > 0 {
			rowAssign[p[j]-1] = j - 1
		}
	}

	result := make([]int, n)
	for i := 0; i < n; i++ {
		col := rowAssign[i]
		if col < 0 || col >= m || cost[i][col] == forbiddenCost {
			result[i] = -1
		} else {
			result[i] = col
		}
	}
	return result
}
