package dto

import (
	"bytes"
	"fmt"
	"time"
)

// DateLayout ISO 日期格式
const DateLayout = "2006-01-02"

// Date 仅含日期部分的 JSON 类型，序列化为 "2006-01-02"
// 里程碑与合同的日期字段都走该类型，避免时区导致的日期漂移
type Date struct {
	time.Time
}

// NewDate 截断到 UTC 零点
func NewDate(t time.Time) Date {
	return Date{Time: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

// DatePtr 可空日期转换
func DatePtr(t *time.Time) *Date {
	if t == nil {
		return nil
	}
	d := NewDate(*t)
	return &d
}

// TimePtr 将可空 Date 还原为 *time.Time
func (d *Date) TimePtr() *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(DateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	s := string(bytes.Trim(b, `"`))
	// 兼容前端直接传入 ISO 时间戳
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return fmt.Errorf("无效的日期 %q: %w", s, err)
	}
	d.Time = t
	return nil
}
