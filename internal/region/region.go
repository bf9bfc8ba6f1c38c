// Package region holds the prefecture table used by the registration form
package region

import (
	"math/rand/v2"
	"sort"
	"strconv"
)

// Region is one selectable prefecture. Code is the form's option value.
type Region struct {
	Code string
	Name string
}

var areas = map[string]string{
	"53": "北海道(道央)", "54": "北海道(道北)", "55": "北海道(道東)", "56": "北海道(道南)",
	"2": "青森", "3": "岩手", "4": "福島", "5": "秋田", "6": "宮城", "7": "山形", "8": "福井",
	"9": "新潟", "10": "石川", "11": "富山", "21": "東京", "15": "神奈川", "16": "埼玉",
	"17": "茨城", "18": "栃木", "19": "群馬", "20": "千葉", "12": "岐阜", "13": "長野",
	"14": "山梨", "22": "愛知", "23": "静岡", "24": "三重", "25": "大阪", "26": "兵庫",
	"27": "奈良", "28": "滋賀", "29": "和歌山", "30": "京都", "31": "岡山", "32": "広島",
	"33": "島根", "34": "鳥取", "35": "山口", "36": "愛媛", "37": "香川", "38": "高知",
	"39": "徳島", "40": "福岡", "41": "熊本", "42": "宮崎", "43": "長崎", "45": "鹿児島",
	"46": "大分", "47": "佐賀", "44": "沖縄",
}

// sorted by numeric code so Pick is deterministic for a seeded rng
var all = func() []Region {
	list := make([]Region, 0, len(areas))
	for code, name := range areas {
		list = append(list, Region{Code: code, Name: name})
	}
	sort.Slice(list, func(i, j int) bool {
		a, _ := strconv.Atoi(list[i].Code)
		b, _ := strconv.Atoi(list[j].Code)
		return a < b
	})
	return list
}()

// All returns every region ordered by code
func All() []Region {
	return append([]Region(nil), all...)
}

// Name returns the prefecture name for a form code
func Name(code string) (string, bool) {
	name, ok := areas[code]
	return name, ok
}

// Pick returns a uniformly random region. A nil rng uses the global source.
func Pick(rng *rand.Rand) Region {
	if rng == nil {
		return all[rand.IntN(len(all))]
	}
	return all[rng.IntN(len(all))]
}
