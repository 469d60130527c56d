package model

// Hobby 爱好目录条目
type Hobby struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

// 爱好分类
var HobbyCategories = []string{
	"Creative",
	"Athletic",
	"Mind/Body",
	"Nature",
	"Social",
	"Technical",
	"Relaxation",
}

// PronounOptions 可选代词，选择 other 时需自行填写
var PronounOptions = []string{
	"she/her",
	"he/him",
	"they/them",
	"other",
}

// HobbyCatalog 固定爱好目录（按分类排列）
var HobbyCatalog = []Hobby{
	{Name: "Painting", Category: "Creative"},
	{Name: "Drawing", Category: "Creative"},
	{Name: "Photography", Category: "Creative"},
	{Name: "Knitting", Category: "Creative"},
	{Name: "Pottery", Category: "Creative"},
	{Name: "Writing", Category: "Creative"},
	{Name: "Guitar", Category: "Creative"},
	{Name: "Singing", Category: "Creative"},

	{Name: "Running", Category: "Athletic"},
	{Name: "Cycling", Category: "Athletic"},
	{Name: "Swimming", Category: "Athletic"},
	{Name: "Rock Climbing", Category: "Athletic"},
	{Name: "Basketball", Category: "Athletic"},
	{Name: "Soccer", Category: "Athletic"},
	{Name: "Tennis", Category: "Athletic"},
	{Name: "Dancing", Category: "Athletic"},

	{Name: "Yoga", Category: "Mind/Body"},
	{Name: "Meditation", Category: "Mind/Body"},
	{Name: "Pilates", Category: "Mind/Body"},
	{Name: "Tai Chi", Category: "Mind/Body"},
	{Name: "Martial Arts", Category: "Mind/Body"},

	{Name: "Hiking", Category: "Nature"},
	{Name: "Gardening", Category: "Nature"},
	{Name: "Birdwatching", Category: "Nature"},
	{Name: "Camping", Category: "Nature"},
	{Name: "Fishing", Category: "Nature"},

	{Name: "Board Games", Category: "Social"},
	{Name: "Cooking", Category: "Social"},
	{Name: "Baking", Category: "Social"},
	{Name: "Volunteering", Category: "Social"},
	{Name: "Karaoke", Category: "Social"},

	{Name: "Chess", Category: "Technical"},
	{Name: "Coding", Category: "Technical"},
	{Name: "Robotics", Category: "Technical"},
	{Name: "Video Games", Category: "Technical"},
	{Name: "3D Printing", Category: "Technical"},

	{Name: "Reading", Category: "Relaxation"},
	{Name: "Puzzles", Category: "Relaxation"},
	{Name: "Movies", Category: "Relaxation"},
	{Name: "Tea Tasting", Category: "Relaxation"},
}

var hobbyIndex = func() map[string]Hobby {
	idx := make(map[string]Hobby, len(HobbyCatalog))
	for _, h := range HobbyCatalog {
		idx[h.Name] = h
	}
	return idx
}()

// IsKnownHobby 检查爱好是否在目录中（区分大小写）
func IsKnownHobby(name string) bool {
	_, ok := hobbyIndex[name]
	return ok
}

// HobbiesByCategory 按分类筛选，category 为空或 "all" 时返回全部
func HobbiesByCategory(category string) []Hobby {
	if category == "" || category == "all" || category == "All" {
		out := make([]Hobby, len(HobbyCatalog))
		copy(out, HobbyCatalog)
		return out
	}
	var out []Hobby
	for _, h := range HobbyCatalog {
		if h.Category == category {
			out = append(out, h)
		}
	}
	return out
}
