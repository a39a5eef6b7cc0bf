package cube

// Size is the edge length of the cube board.
const Size = 5

// Line is the number of consecutive marks required to win.
const Line = 4

// Board is a 5x5x5 grid of marks.
type Board [Size][Size][Size]Mark

// directions enumerates the 13 distinct unit direction classes in a
// cube: 3 axes, 6 face diagonals, 4 space diagonals. Each is only
// listed once (not mirrored), since has_line probes a line both ways
// from every occupied cell in the mark's own direction set below by
// walking the full Line-1 offset range, not just forward.
var directions = [13][3]int{
	{1, 0, 0}, {0, 1, 0}, {0, 0, 1},
	{1, 1, 0}, {1, -1, 0},
	{1, 0, 1}, {1, 0, -1},
	{0, 1, 1}, {0, 1, -1},
	{1, 1, 1}, {1, 1, -1}, {1, -1, 1}, {1, -1, -1},
}

func inBounds(n int) bool {
	return n >= 0 && n < Size
}

// checkLine returns true iff the Line cells starting at (x,y,z) and
// stepping by (dx,dy,dz) are all in bounds and equal to mark.
func checkLine(b *Board, mark Mark, x, y, z, dx, dy, dz int) bool {
	for i := 0; i < Line; i++ {
		nx, ny, nz := x+i*dx, y+i*dy, z+i*dz
		if !inBounds(nx) || !inBounds(ny) || !inBounds(nz) {
			return false
		}
		if b[nx][ny][nz] != mark {
			return false
		}
	}
	return true
}

// HasLine returns true iff some straight line of four consecutive
// cells, all equal to mark, exists anywhere in the cube.
//
// For every occupied cell matching mark, each of the 13 direction
// classes is probed from every start between the cell itself and
// Line-1 cells back along the direction, so a line is found regardless of which of its four cells
// is the one under inspection. This must be a logical OR over all
// direction classes, not a tuple whose truth value is always
// non-empty.
func HasLine(b *Board, mark Mark) bool {
	if mark == Empty {
		return false
	}
	for x := 0; x < Size; x++ {
		for y := 0; y < Size; y++ {
			for z := 0; z < Size; z++ {
				if b[x][y][z] != mark {
					continue
				}
				for _, d := range directions {
					for k := 0; k < Line; k++ {
						sx := x - k*d[0]
						sy := y - k*d[1]
						sz := z - k*d[2]
						if checkLine(b, mark, sx, sy, sz, d[0], d[1], d[2]) {
							return true
						}
					}
				}
			}
		}
	}
	return false
}
