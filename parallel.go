/*
Copyright © 2024 the InMAP authors.
This file is part of InMAP.

InMAP is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

InMAP is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with InMAP.  If not, see <http://www.gnu.org/licenses/>.
*/

package iop

import (
	"runtime"
	"sync"
)

// parallelFor calls f once for every index in [0, n), with the
// indices split among one worker per processor.
func parallelFor(n int, f func(i int)) {
	nprocs := runtime.GOMAXPROCS(0) // number of processors
	if nprocs > n {
		nprocs = n
	}
	var wg sync.WaitGroup
	wg.Add(nprocs)
	for pp := 0; pp < nprocs; pp++ {
		go func(pp int) {
			for ii := pp; ii < n; ii += nprocs {
				f(ii)
			}
			wg.Done()
		}(pp)
	}
	wg.Wait()
}

// direction is the comparison used to combine candidate indices
// in searchIndex.
type direction int

const (
	// lowest keeps the smallest qualifying index.
	lowest direction = iota
	// highest keeps the largest qualifying index.
	highest
)

// searchIndex is a parallel reduction over the indices [0, n). It
// returns i+offset for the lowest or highest (depending on dir) index i
// for which pred(i) is true, or fallback if pred is false everywhere.
func searchIndex(n int, dir direction, offset, fallback int, pred func(i int) bool) int {
	nprocs := runtime.GOMAXPROCS(0)
	if nprocs > n {
		nprocs = n
	}
	found := make([]bool, nprocs)
	best := make([]int, nprocs)

	var wg sync.WaitGroup
	wg.Add(nprocs)
	for pp := 0; pp < nprocs; pp++ {
		go func(pp int) {
			for ii := pp; ii < n; ii += nprocs {
				if !pred(ii) {
					continue
				}
				if !found[pp] || better(dir, ii, best[pp]) {
					best[pp] = ii
					found[pp] = true
				}
			}
			wg.Done()
		}(pp)
	}
	wg.Wait()

	result, ok := 0, false
	for pp := range best {
		if found[pp] && (!ok || better(dir, best[pp], result)) {
			result, ok = best[pp], true
		}
	}
	if !ok {
		return fallback
	}
	return result + offset
}

func better(dir direction, a, b int) bool {
	if dir == lowest {
		return a < b
	}
	return a > b
}
