package model

import "time"

// Hero はブラインドデート機能のプロフィールを表す。
// クラン単位で公開され、1ユーザーにつき1件のみ登録できる。
type Hero struct {
	ID         string
	ClanID     string
	UserID     string
	Nickname   string
	Gender     Gender
	BirthYear  int
	Education  Education
	Intro      string
	PhotoURL   string
	Status     HeroStatus
	Preference HeroPreference
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// HeroPreference はお相手に求める条件を表す。ゼロ値の項目は「指定なし」。
type HeroPreference struct {
	MinAge       int
	MaxAge       int
	MinEducation Education
	Gender       Gender
}

// Gender は性別を表す。
type Gender string

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
)

// Valid は定義済みの性別かどうかを返す。
func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale
}

// HeroStatus はプロフィールの公開状態を表す。
type HeroStatus string

const (
	// HeroStatusAvailable は出会いを募集中の状態。
	HeroStatusAvailable HeroStatus = "available"
	// HeroStatusTalking は特定の相手とやりとり中の状態。
	HeroStatusTalking HeroStatus = "talking"
	// HeroStatusTaken はお相手が決まった状態。
	HeroStatusTaken HeroStatus = "taken"
)

var heroStatusLabels = map[HeroStatus]string{
	HeroStatusAvailable: "募集中",
	HeroStatusTalking:   "やりとり中",
	HeroStatusTaken:     "お相手あり",
}

// Valid は定義済みのステータスかどうかを返す。
func (s HeroStatus) Valid() bool {
	_, ok := heroStatusLabels[s]
	return ok
}

// Label は画面表示用のラベルを返す。未定義のステータスには空文字を返す。
func (s HeroStatus) Label() string {
	return heroStatusLabels[s]
}

// Education は最終学歴を表す。定義順に序列を持つ。
type Education string

const (
	EducationHighSchool Education = "HIGH_SCHOOL"
	EducationAssociate  Education = "ASSOCIATE"
	EducationBachelor   Education = "BACHELOR"
	EducationMaster     Education = "MASTER"
	EducationDoctorate  Education = "DOCTORATE"
)

// educationRanks は学歴の序列。値が大きいほど上位。
var educationRanks = map[Education]int{
	EducationHighSchool: 1,
	EducationAssociate:  2,
	EducationBachelor:   3,
	EducationMaster:     4,
	EducationDoctorate:  5,
}

// Valid は定義済みの学歴かどうかを返す。
func (e Education) Valid() bool {
	_, ok := educationRanks[e]
	return ok
}

// Rank は学歴の序列を返す。未定義の値には0を返す。
func (e Education) Rank() int {
	return educationRanks[e]
}

// AtLeast はeがminと同等以上の学歴かどうかを返す。minが空の場合は常にtrue。
func (e Education) AtLeast(min Education) bool {
	if min == "" {
		return true
	}
	return e.Rank() >= min.Rank()
}
