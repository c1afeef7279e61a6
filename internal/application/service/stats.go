package service

type ProcessStats struct {
	DBReadMs  float64
	DBWriteMs float64
	TotalMs   float64
}
