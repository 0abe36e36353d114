package domain

// BoardSize is the width and height of the square board grid.
const BoardSize = 15

const (
	// TrackLength is the number of cells on the shared outer loop.
	TrackLength = 52
	// HomeStretchLength is the number of private cells before the centre.
	HomeStretchLength = 5
	// PathLength is the number of cells a token walks from start to finish inclusive.
	PathLength = TrackLength - 1 + HomeStretchLength + 1
	// FinishIndex is the path index of the centre cell.
	FinishIndex = PathLength - 1
	// HomeIndex is the path index of a token still in the yard.
	HomeIndex = -1
)

// Coord is a cell on the board grid.
type Coord struct {
	X int
	Y int
}

// FinishCoord is the centre cell every color finishes on.
var FinishCoord = Coord{X: 7, Y: 7}

var (
	track       [TrackLength]Coord
	safeCells   = map[Coord]bool{}
	colorPaths  = map[Color][PathLength]Coord{}
	startOffset = map[Color]int{
		ColorRed:    0,
		ColorGreen:  13,
		ColorYellow: 26,
		ColorBlue:   39,
	}
	homeStretch = map[Color][HomeStretchLength]Coord{
		ColorRed:    {{1, 7}, {2, 7}, {3, 7}, {4, 7}, {5, 7}},
		ColorGreen:  {{7, 1}, {7, 2}, {7, 3}, {7, 4}, {7, 5}},
		ColorYellow: {{13, 7}, {12, 7}, {11, 7}, {10, 7}, {9, 7}},
		ColorBlue:   {{7, 13}, {7, 12}, {7, 11}, {7, 10}, {7, 9}},
	}
	homeYard = map[Color][TokensPerPlayer]Coord{
		ColorRed:    {{2, 2}, {2, 3}, {3, 2}, {3, 3}},
		ColorGreen:  {{11, 2}, {11, 3}, {12, 2}, {12, 3}},
		ColorYellow: {{11, 11}, {11, 12}, {12, 11}, {12, 12}},
		ColorBlue:   {{2, 11}, {2, 12}, {3, 11}, {3, 12}},
	}
	// Four start cells plus one star cell eight steps past each start.
	safeTrackIndices = []int{0, 8, 13, 21, 26, 34, 39, 47}
)

func init() {
	n := 0
	add := func(x, y int) {
		track[n] = Coord{X: x, Y: y}
		n++
	}
	line := func(x0, y0, x1, y1 int) {
		dx, dy := sign(x1-x0), sign(y1-y0)
		for x, y := x0, y0; ; x, y = x+dx, y+dy {
			add(x, y)
			if x == x1 && y == y1 {
				return
			}
		}
	}

	// Clockwise from red's start cell.
	line(1, 6, 5, 6)
	line(6, 5, 6, 0)
	add(7, 0)
	line(8, 0, 8, 5)
	line(9, 6, 14, 6)
	add(14, 7)
	line(14, 8, 9, 8)
	line(8, 9, 8, 14)
	add(7, 14)
	line(6, 14, 6, 9)
	line(5, 8, 0, 8)
	add(0, 7)
	add(0, 6)
	if n != TrackLength {
		panic("board: track has wrong length")
	}

	for _, i := range safeTrackIndices {
		safeCells[track[i]] = true
	}

	for _, c := range Colors {
		var p [PathLength]Coord
		start := startOffset[c]
		for i := 0; i < TrackLength-1; i++ {
			p[i] = track[(start+i)%TrackLength]
		}
		stretch := homeStretch[c]
		for i := 0; i < HomeStretchLength; i++ {
			p[TrackLength-1+i] = stretch[i]
		}
		p[FinishIndex] = FinishCoord
		colorPaths[c] = p
	}
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// Path returns the full walk for a color, start cell first and centre last.
func Path(c Color) [PathLength]Coord {
	return colorPaths[c]
}

// PathCoord returns the cell at index on a color's path.
func PathCoord(c Color, index int) (Coord, bool) {
	if index < 0 || index >= PathLength {
		return Coord{}, false
	}
	p, ok := colorPaths[c]
	if !ok {
		return Coord{}, false
	}
	return p[index], true
}

// StartCoord returns the cell a token enters on.
func StartCoord(c Color) Coord {
	return track[startOffset[c]]
}

// HomeCoord returns the yard cell of a color's n-th token.
func HomeCoord(c Color, n int) Coord {
	return homeYard[c][n%TokensPerPlayer]
}

// IsSafe reports whether tokens on the cell cannot be captured.
func IsSafe(cell Coord) bool {
	return safeCells[cell]
}

// SafeCells returns the safe cells in track order.
func SafeCells() []Coord {
	out := make([]Coord, 0, len(safeTrackIndices))
	for _, i := range safeTrackIndices {
		out = append(out, track[i])
	}
	return out
}

// TrackCoord returns the shared loop cell at i.
func TrackCoord(i int) Coord {
	return track[((i%TrackLength)+TrackLength)%TrackLength]
}
