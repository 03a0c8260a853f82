package models

type Category string

const (
	CategoryFiction    Category = "Fiction"
	CategoryNonFiction Category = "Non-Fiction"
	CategoryScience    Category = "Science"
	CategoryTechnology Category = "Technology"
	CategoryHistory    Category = "History"
	CategoryBiography  Category = "Biography"
	CategorySelfHelp   Category = "Self-Help"
	CategoryFantasy    Category = "Fantasy"
	CategoryMystery    Category = "Mystery"
	CategoryRomance    Category = "Romance"
	CategoryThriller   Category = "Thriller"
	CategoryChildren   Category = "Children"
	CategoryEducation  Category = "Education"
	CategoryBusiness   Category = "Business"
	CategoryArt        Category = "Art"
)

var Categories = []Category{
	CategoryFiction, CategoryNonFiction, CategoryScience, CategoryTechnology, CategoryHistory,
	CategoryBiography, CategorySelfHelp, CategoryFantasy, CategoryMystery, CategoryRomance,
	CategoryThriller, CategoryChildren, CategoryEducation, CategoryBusiness, CategoryArt,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}
