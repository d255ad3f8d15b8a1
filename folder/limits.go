package folder

// LeaveFreeDefault is HDD_LEAVE_SPACE_DEFAULT (§6), 256 MiB.
const LeaveFreeDefault uint64 = 256 << 20

// pctScale is the fixed-point scale LimitData uses when LimitMode is one of
// the *_PCT variants: a ratio r in [0,1) is stored as uint64(r * pctScale).
const pctScale = 1 << 32

func maxU64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

func minU64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

func subU64(a, b uint64) uint64 {
	if a < b {
		return 0
	}
	return a - b
}

// ratioOf applies a *_PCT limitData (a pctScale-fixed-point fraction) to a
// byte quantity.
func ratioOf(limitData, of uint64) uint64 {
	return uint64((float64(limitData) / float64(pctScale)) * float64(of))
}

// reportedLimits computes (avail, total) reported to the master, per the
// §4.B table, given the raw statvfs-derived hddAvail/hddTotal and the
// folder's estimated on-disk usage.
func reportedLimits(mode LimitMode, limitData, hddAvail, hddTotal, usage, leaveFree uint64) (avail, total uint64) {
	switch mode {
	case LimitNone:
		return subU64(hddAvail, leaveFree), hddTotal

	case LimitTotalPosConst:
		a := subU64(limitData, usage)
		return a, a + usage
	case LimitTotalPosPct:
		ldata := ratioOf(limitData, hddTotal)
		a := subU64(ldata, usage)
		return a, a + usage

	case LimitTotalNegConst:
		a := subU64(subU64(hddTotal, limitData), usage)
		return a, a + usage
	case LimitTotalNegPct:
		ldata := ratioOf(limitData, hddTotal)
		a := subU64(subU64(hddTotal, ldata), usage)
		return a, a + usage

	case LimitShared:
		a := subU64(hddAvail, leaveFree)
		return a, a + usage

	case LimitSharedPosConst:
		a := minU64(limitData, hddAvail)
		return a, a + usage
	case LimitSharedPosPct:
		ldata := ratioOf(limitData, hddTotal)
		a := minU64(ldata, hddAvail)
		return a, a + usage

	case LimitSharedNegConst:
		a := subU64(hddAvail, limitData)
		return a, a + usage
	case LimitSharedNegPct:
		ldata := ratioOf(limitData, hddTotal)
		a := subU64(hddAvail, ldata)
		return a, a + usage

	default:
		return subU64(hddAvail, leaveFree), hddTotal
	}
}
