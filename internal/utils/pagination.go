package utils

const (
	// DefaultPage - первая страница.
	DefaultPage = 1
	// DefaultPageLimit - размер страницы галереи и списка рассказов.
	DefaultPageLimit = 12
	// MaxPageLimit ограничивает размер страницы.
	MaxPageLimit = 100
)

// NormalizePage подставляет значения по умолчанию для page и limit.
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit
}

// PageOffset возвращает смещение для страницы.
func PageOffset(page, limit int) int {
	return (page - 1) * limit
}

// TotalPages - число страниц с округлением вверх.
func TotalPages(total, limit int) int {
	if limit <= 0 || total <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}
