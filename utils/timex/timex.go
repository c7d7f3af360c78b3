package timex

import (
	"time"
)

func NowLocalTime() time.Time {
	return time.Now().Local()
}

func ParseTime(s string, f string) (time.Time, error) {
	t, err := time.ParseInLocation(f, s, time.Local)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// StartOfDay 返回 t 所在时区当天的零点。
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
