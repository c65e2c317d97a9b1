package gridmodel

import (
	"encoding/json"
	"os"

	"github.com/saferoute/risk-engine/internal/config"
)

// 文档注释：种子分类表（harm_weight 指示性默认值）
// 背景：spec 要求 harm_weight 作为配置加载但需要带有经过校准的默认值；这里给出启动期种子，
// 可由 HARM_WEIGHTS_PATH 指向的 JSON 文件覆盖（见 LoadCategories）。
// 约束：time_of_day 乘数未显式给出时默认 1.0（见 CrimeCategory.TODMultiplier）。
func defaultCategories() map[string]CrimeCategory {
	mk := func(id string, harm float64, night, morning, day, evening float64) CrimeCategory {
		return CrimeCategory{
			ID:         id,
			HarmWeight: harm,
			TOD: map[config.TimeOfDay]float64{
				config.TimeOfDayNight:   night,
				config.TimeOfDayMorning: morning,
				config.TimeOfDayDay:     day,
				config.TimeOfDayEvening: evening,
			},
		}
	}
	cats := []CrimeCategory{
		mk("violent-crime", 3.0, 2.5, 0.8, 1.0, 1.6),
		mk("burglary", 2.0, 2.0, 0.6, 0.8, 1.3),
		mk("robbery", 2.5, 2.2, 0.7, 0.9, 1.7),
		mk("theft-from-the-person", 1.8, 1.4, 1.0, 1.1, 1.5),
		mk("vehicle-crime", 1.5, 1.6, 0.8, 0.9, 1.2),
		mk("criminal-damage-arson", 1.3, 1.5, 0.7, 0.9, 1.3),
		mk("drugs", 1.2, 1.3, 0.8, 1.0, 1.2),
		mk("public-order", 1.1, 1.4, 0.7, 0.9, 1.4),
		mk("shoplifting", 1.0, 0.5, 1.1, 1.3, 1.0),
		mk("other-theft", 1.2, 1.0, 1.0, 1.1, 1.1),
		mk("bicycle-theft", 1.0, 0.9, 1.0, 1.1, 1.0),
		mk("anti-social-behaviour", 0.8, 1.3, 0.7, 0.9, 1.2),
		mk(OtherCategoryID, 1.0, 1.0, 1.0, 1.0, 1.0),
	}
	out := make(map[string]CrimeCategory, len(cats))
	for _, c := range cats {
		out[c.ID] = c
	}
	return out
}

// categoryOverrideFile 是 HARM_WEIGHTS_PATH 指向 JSON 文件的磁盘表示。
type categoryOverrideFile struct {
	Categories []struct {
		ID         string             `json:"id"`
		HarmWeight float64            `json:"harm_weight"`
		TOD        map[string]float64 `json:"time_of_day_multipliers"`
	} `json:"categories"`
}

// LoadCategories 返回种子分类表，若 cfg.HarmWeightsPath 非空则用其内容覆盖/新增分类。
// 覆盖文件中出现的分类 id 完全替换种子值；未出现的分类保留种子默认值。
func LoadCategories(cfg *config.Config) (map[string]CrimeCategory, error) {
	cats := defaultCategories()
	if cfg == nil || cfg.HarmWeightsPath == "" {
		return cats, nil
	}
	b, err := os.ReadFile(cfg.HarmWeightsPath)
	if err != nil {
		return nil, err
	}
	var f categoryOverrideFile
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, err
	}
	for _, oc := range f.Categories {
		tod := map[config.TimeOfDay]float64{
			config.TimeOfDayNight:   1.0,
			config.TimeOfDayMorning: 1.0,
			config.TimeOfDayDay:     1.0,
			config.TimeOfDayEvening: 1.0,
		}
		for k, v := range oc.TOD {
			if t, ok := config.ParseTimeOfDay(k); ok {
				tod[t] = v
			}
		}
		cats[oc.ID] = CrimeCategory{ID: oc.ID, HarmWeight: oc.HarmWeight, TOD: tod}
	}
	if _, ok := cats[OtherCategoryID]; !ok {
		cats[OtherCategoryID] = CrimeCategory{ID: OtherCategoryID, HarmWeight: 1.0, TOD: map[config.TimeOfDay]float64{
			config.TimeOfDayNight: 1.0, config.TimeOfDayMorning: 1.0, config.TimeOfDayDay: 1.0, config.TimeOfDayEvening: 1.0,
		}}
	}
	return cats, nil
}
