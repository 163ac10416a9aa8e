// Package validate проверяет одно значение поля против его дескриптора
// и значений соседних полей. Пакет не хранит состояния.
package validate

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"rekord/internal/dsl"
	"rekord/internal/record"
)

// Сообщения проверок. Клиенты сравнивают их как есть.
const (
	MsgRequired       = "Required"
	MsgMissing        = "Missing value"
	MsgCleared        = "Cleared value"
	MsgInvalid        = "Invalid"
	MsgTooShort       = "Too Short"
	MsgTooLong        = "Too Long"
	MsgNotList        = "Must be a list"
	MsgOlder          = "Must be older"
	MsgPasswordMatch  = "Must match password"
	MsgInvalidURL     = "Invalid URL"
	MsgCustomRequired = "Custom value required"
	MsgCustomInvalid  = "Invalid custom value"
	MsgInvalidDate    = "Invalid date"
	MsgInvalidEnd     = "Invalid end date"
	MsgEndBeforeStart = "End date before start date"
	MsgOutOfRange     = "Out of range"
	MsgMaxOutOfRange  = "Max Out of range"
	MsgInvalidID      = "Invalid ID"
	MsgInvalidOption  = "Invalid option"
	MsgValid          = "Valid"
)

// CustomSentinel — значение SELECT_LIST, открывающее поле customField.
const CustomSentinel = "CUSTOM"

const (
	fieldDateOfBirth    = "dateOfBirth"
	fieldPassword       = "password"
	fieldPasswordVerify = "passwordVerify"
	fieldStartDate      = "startDate"
	fieldEndDate        = "endDate"
)

const year = 365.25 * 24 * time.Hour

// AgeBounds отдаёт возрастные границы для ролей вызывающего.
type AgeBounds interface {
	AgeBounds(roles []string) (minAge, maxAge int, ok bool)
}

// SiblingFunc ищет значение соседнего поля по внешнему имени.
type SiblingFunc func(name string) (any, bool)

// Context — всё, что проверка знает помимо самого значения.
type Context struct {
	Siblings SiblingFunc
	Roles    []string
	Bounds   AgeBounds
	Now      time.Time
	// BasicOnly — облегчённый режим: без required и межполевых проверок дат
	BasicOnly bool
}

func (c Context) sibling(name string) (any, bool) {
	if c.Siblings == nil || name == "" {
		return nil, false
	}
	v, ok := c.Siblings(name)
	if !ok || v == nil || record.IsCleared(v) {
		return nil, false
	}
	return v, true
}

func (c Context) now() time.Time {
	if c.Now.IsZero() {
		return time.Now()
	}
	return c.Now
}

// Outcome — результат проверки одного поля.
type Outcome struct {
	Passed      bool   `json:"passed"`
	Message     string `json:"message"`
	Description string `json:"description,omitempty"`
}

func pass(msg string) Outcome { return Outcome{Passed: true, Message: msg} }

func fail(f dsl.Field, msg string) Outcome {
	return Outcome{Message: msg, Description: fmt.Sprintf("%s: %s", f.Label(), msg)}
}

// Field проверяет value против f. present == false — поле не пришло.
// Правила идут по порядку, первое нарушение выигрывает.
func Field(f dsl.Field, value any, present bool, ctx Context) Outcome {
	if !present {
		if f.Required && !ctx.BasicOnly {
			return Outcome{Message: MsgRequired, Description: fmt.Sprintf("%s is Required.", f.Label())}
		}
		return pass(MsgMissing)
	}
	if record.IsCleared(value) {
		return pass(MsgCleared)
	}
	// битый pattern не должен пропускать всё подряд
	if f.Pattern != "" && f.Regexp() == nil {
		return fail(f, MsgInvalid)
	}

	if f.Type.IsList() {
		items, ok := Elements(value)
		if !ok {
			return fail(f, MsgNotList)
		}
		if out, ok := checkElements(f, items); !ok {
			return out
		}
	} else {
		if out, ok := checkText(f, f.Regexp(), Text(value), patternMessage(f)); !ok {
			return out
		}
	}

	return special(f, value, ctx)
}

func patternMessage(f dsl.Field) string {
	if f.PatternMessage != "" {
		return f.PatternMessage
	}
	return MsgInvalid
}

// checkText — pattern, затем длина в code points.
func checkText(f dsl.Field, re *regexp.Regexp, s, patternMsg string) (Outcome, bool) {
	if re != nil && !re.MatchString(s) {
		return fail(f, patternMsg), false
	}
	if f.Length != nil {
		n := utf8.RuneCountInString(s)
		if n < f.Length.Min {
			return fail(f, MsgTooShort), false
		}
		if f.Length.Max > 0 && n > f.Length.Max {
			return fail(f, MsgTooLong), false
		}
	}
	return Outcome{}, true
}

func checkElements(f dsl.Field, items []any) (Outcome, bool) {
	re := f.Regexp()
	for i, it := range items {
		s := Text(it)
		if re != nil && !re.MatchString(s) {
			return fail(f, fmt.Sprintf("[%d] %s", i, MsgInvalid)), false
		}
		if f.Length == nil {
			continue
		}
		n := utf8.RuneCountInString(s)
		if n < f.Length.Min {
			return fail(f, fmt.Sprintf("[%d] %s", i, MsgTooShort)), false
		}
		if f.Length.Max > 0 && n > f.Length.Max {
			return fail(f, fmt.Sprintf("[%d] %s", i, MsgTooLong)), false
		}
	}
	return Outcome{}, true
}

// special — правила, не зависящие от сущности. Первое подходящее решает.
func special(f dsl.Field, value any, ctx Context) Outcome {
	switch {
	case f.Type == dsl.TypeDate && f.Name == fieldDateOfBirth:
		return checkDateOfBirth(f, value, ctx)

	case f.Name == fieldPasswordVerify:
		other, ok := ctx.sibling(fieldPassword)
		if !ok || Text(other) != Text(value) {
			return fail(f, MsgPasswordMatch)
		}
		return pass(MsgValid)

	case f.Type == dsl.TypeText && (strings.EqualFold(f.Name, "url") || strings.EqualFold(f.Name, "image")):
		if !isURL(Text(value)) {
			return fail(f, MsgInvalidURL)
		}
		return pass(MsgValid)

	case f.CustomField != "" && Text(value) == CustomSentinel:
		return checkCustom(f, ctx)

	case f.Type == dsl.TypeCustom:
		return pass(MsgValid)

	case f.Type == dsl.TypeDate:
		return checkDate(f, value, ctx)

	case f.Type == dsl.TypeRangeSlider:
		return checkRange(f, value, ctx)

	case f.Type.IsIDList():
		items, _ := Elements(value)
		for i, it := range items {
			if _, ok := PositiveInt(it); !ok {
				return fail(f, fmt.Sprintf("[%d] %s", i, MsgInvalidID))
			}
		}
		return pass(MsgValid)

	case f.Type == dsl.TypeSelectList:
		if !f.HasOption(Text(value)) {
			return fail(f, MsgInvalidOption)
		}
		return pass(MsgValid)

	case f.Type == dsl.TypeMultiSelectionList:
		items, _ := Elements(value)
		for i, it := range items {
			if !f.HasOption(Text(it)) {
				return fail(f, fmt.Sprintf("[%d] %s", i, MsgInvalidOption))
			}
		}
		return pass(MsgValid)
	}
	return pass(MsgValid)
}

// Age — полных лет на момент now, с поправкой в один день.
// Округление вниз: дата рождения в будущем даёт отрицательный возраст.
func Age(birth, now time.Time) int {
	return int(math.Floor(float64(now.Sub(birth)+24*time.Hour) / float64(year)))
}

func checkDateOfBirth(f dsl.Field, value any, ctx Context) Outcome {
	birth, ok := ParseDate(value)
	if !ok {
		return fail(f, MsgInvalidDate)
	}
	if ctx.Bounds == nil {
		return pass(MsgValid)
	}
	minAge, maxAge, ok := ctx.Bounds.AgeBounds(ctx.Roles)
	if !ok {
		return pass(MsgValid)
	}
	// вне [minAge, maxAge) — одно сообщение в обе стороны
	age := Age(birth, ctx.now())
	if age < minAge || (maxAge > 0 && age >= maxAge) {
		return fail(f, MsgOlder)
	}
	return pass(MsgValid)
}

func isURL(s string) bool {
	u, err := url.ParseRequestURI(s)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}

// checkCustom проверяет значение customField по pattern/length самого поля.
// Для SELECT_LIST pattern, собранный из опций, не применяется.
func checkCustom(f dsl.Field, ctx Context) Outcome {
	v, ok := ctx.sibling(f.CustomField)
	if !ok || strings.TrimSpace(Text(v)) == "" {
		return fail(f, MsgCustomRequired)
	}
	var re *regexp.Regexp
	if f.Type != dsl.TypeSelectList || f.Options["pattern"] != "" {
		re = f.Regexp()
	}
	if _, ok := checkText(f, re, Text(v), MsgCustomInvalid); !ok {
		return fail(f, MsgCustomInvalid)
	}
	return pass(MsgValid)
}

func checkDate(f dsl.Field, value any, ctx Context) Outcome {
	start, ok := ParseDate(value)
	if !ok {
		return fail(f, MsgInvalidDate)
	}
	if f.Name != fieldStartDate || ctx.BasicOnly {
		return pass(MsgValid)
	}
	raw, ok := ctx.sibling(fieldEndDate)
	if !ok {
		return pass(MsgValid)
	}
	end, ok := ParseDate(raw)
	if !ok {
		return fail(f, MsgInvalidEnd)
	}
	if end.Before(start) {
		return fail(f, MsgEndBeforeStart)
	}
	return pass(MsgValid)
}

func checkRange(f dsl.Field, value any, ctx Context) Outcome {
	n, ok := Number(value)
	if !ok || !within(n, f.MinValue, f.MaxValue) {
		return fail(f, MsgOutOfRange)
	}
	if f.MaxField == "" {
		return pass(MsgValid)
	}
	raw, ok := ctx.sibling(f.MaxField)
	if !ok {
		return pass(MsgValid)
	}
	upper, ok := Number(raw)
	if !ok || !within(upper, &n, f.MaxValue) {
		return fail(f, MsgMaxOutOfRange)
	}
	return pass(MsgValid)
}

func within(n float64, lo, hi *float64) bool {
	if lo != nil && n < *lo {
		return false
	}
	if hi != nil && n > *hi {
		return false
	}
	return true
}
