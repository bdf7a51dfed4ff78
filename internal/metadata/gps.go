package metadata

// DMSToDecimal converts a degrees/minutes/seconds triple (or a shorter
// prefix of one) to decimal degrees.
func DMSToDecimal(dms []float64) (float64, bool) {
	switch len(dms) {
	case 3:
		return dms[0] + dms[1]/60.0 + dms[2]/3600.0, true
	case 2:
		return dms[0] + dms[1]/60.0, true
	case 1:
		return dms[0], true
	default:
		return 0, false
	}
}

// SignedCoordinate applies a hemisphere reference: "S" negates a latitude,
// "W" negates a longitude. Any other reference leaves v unchanged.
func SignedCoordinate(v float64, ref string) float64 {
	if ref == "S" || ref == "W" {
		return -v
	}
	return v
}
