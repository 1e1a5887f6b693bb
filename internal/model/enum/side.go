package enum

type Side uint8

const (
	_side_beg Side = iota
	SideDown
	SideUp
	_side_end
)

func (s Side) IsAvailable() bool {
	return s > _side_beg && s < _side_end
}

func (s Side) IsUp() bool {
	return s == SideUp
}

// SideFromInt maps the wire encoding (0 = down, >0 = up) to a Side.
func SideFromInt(v int64) Side {
	if v > 0 {
		return SideUp
	}
	return SideDown
}
