package adapter

const defaultPageLimit = 50

func normalizePage(limit int, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
