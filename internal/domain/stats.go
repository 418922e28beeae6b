package domain

// OverviewStats summarizes all-time listening activity across the history
// ledger, including books no longer in the library.
type OverviewStats struct {
	BooksStarted      int   `json:"books_started"`
	BooksCompleted    int   `json:"books_completed"`
	TotalListenTimeMs int64 `json:"total_listen_time_ms"`
}

// BookStats is per-book listening detail for a single history entry.
type BookStats struct {
	History      *BookHistory `json:"history"`
	ListenTimeMs int64        `json:"listen_time_ms"`
	DaysListened int          `json:"days_listened"`
}

// MonthlyCompletions counts finished books for one calendar month.
type MonthlyCompletions struct {
	// Month is in YYYY-MM form.
	Month string `json:"month"`
	Count int    `json:"count"`
}

// DailyListening is total listening time for one calendar day.
type DailyListening struct {
	// Date is in YYYY-MM-DD form.
	Date         string `json:"date"`
	ListenTimeMs int64  `json:"listen_time_ms"`
}
