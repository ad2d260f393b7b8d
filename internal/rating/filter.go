package rating

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hitoshi/photorate/internal/model"
)

// CandidatePageSize は1回の候補取得で返す最大件数。
const CandidatePageSize = 10

// 「すべて」を表すクエリ値。
const filterAll = "all"

// ageBucket はクライアントが選択できる年齢層。
type ageBucket struct {
	min int
	max *int
}

func intPtr(v int) *int { return &v }

// 50+ は36-50と重ならないよう51歳以上として扱う。
var ageBuckets = map[string]ageBucket{
	"18-25": {min: 18, max: intPtr(25)},
	"26-35": {min: 26, max: intPtr(35)},
	"36-50": {min: 36, max: intPtr(50)},
	"50+":   {min: 51},
}

// ParseCandidateFilter はクエリパラメータから評価候補の絞り込み条件を組み立てる。
// ageMin・ageMaxが指定された場合は年齢層ageより優先する。
// 空文字と"all"は条件なしとして扱う。
func ParseCandidateFilter(gender, age, ageMin, ageMax string) (model.CandidateFilter, error) {
	filter := model.CandidateFilter{Limit: CandidatePageSize}

	gender = strings.ToLower(strings.TrimSpace(gender))
	if gender != "" && gender != filterAll {
		g := model.Gender(gender)
		if !g.Valid() {
			return filter, model.NewInvalidFilterError(fmt.Sprintf("gender %q", gender))
		}
		filter.Gender = g
	}

	age = strings.TrimSpace(age)
	if age != "" && age != filterAll {
		bucket, ok := ageBuckets[age]
		if !ok {
			return filter, model.NewInvalidFilterError(fmt.Sprintf("age %q", age))
		}
		filter.AgeMin = intPtr(bucket.min)
		filter.AgeMax = bucket.max
	}

	minAge, err := parseAgeBound("ageMin", ageMin)
	if err != nil {
		return filter, err
	}
	maxAge, err := parseAgeBound("ageMax", ageMax)
	if err != nil {
		return filter, err
	}
	if minAge != nil || maxAge != nil {
		filter.AgeMin, filter.AgeMax = minAge, maxAge
	}
	if filter.AgeMin != nil && filter.AgeMax != nil && *filter.AgeMin > *filter.AgeMax {
		return filter, model.NewInvalidFilterError(fmt.Sprintf("ageMin %d > ageMax %d", *filter.AgeMin, *filter.AgeMax))
	}

	return filter, nil
}

func parseAgeBound(name, raw string) (*int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return nil, model.NewInvalidFilterError(fmt.Sprintf("%s %q", name, raw))
	}
	return &v, nil
}
