package physics

// Freedom направления, в которых движение не заблокировано
type Freedom struct {
	XPos bool `json:"x+"`
	XNeg bool `json:"x-"`
	YPos bool `json:"y+"`
	YNeg bool `json:"y-"`
	ZPos bool `json:"z+"`
	ZNeg bool `json:"z-"`
}

// CalculateFreedom выводит свободу движения из касаний по граням
func CalculateFreedom(cs Collisions) Freedom {
	return Freedom{
		XPos: len(cs.Right) == 0,
		XNeg: len(cs.Left) == 0,
		YPos: len(cs.Top) == 0,
		YNeg: len(cs.Bottom) == 0,
		ZPos: len(cs.Back) == 0,
		ZNeg: len(cs.Forward) == 0,
	}
}

// Degrees количество свободных направлений
func (f Freedom) Degrees() int {
	n := 0
	for _, free := range []bool{f.XPos, f.XNeg, f.YPos, f.YNeg, f.ZPos, f.ZNeg} {
		if free {
			n++
		}
	}
	return n
}

// Blocked true если заблокированы все направления (игрок застрял)
func (f Freedom) Blocked() bool {
	return f.Degrees() == 0
}
