// Package days содержит арифметику календарных остатков в сутках,
// которая используется пробным периодом и подписками.
package days

import "time"

// Day длительность суток.
const Day = 24 * time.Hour

// Until возвращает ceil((end-now)/сутки). Значение отрицательно, если end уже прошёл:
// меньше суток до конца считается как 1, ровно в момент окончания получается 0.
func Until(end, now time.Time) int {
	d := end.Sub(now)
	n := d / Day
	if d%Day > 0 {
		n++
	}
	return int(n)
}

// Remaining то же, что Until, но не опускается ниже нуля. Используется для отображения.
func Remaining(end, now time.Time) int {
	return max(0, Until(end, now))
}

// Add сдвигает момент на n суток без учёта перехода на летнее время.
func Add(t time.Time, n int) time.Time {
	return t.Add(time.Duration(n) * Day)
}
