package store

import "github.com/kapitalops/intakebot/internal/domain"

// Seed lists carried over from the original deployment. Seed entries come
// first in canonical catalog order; admin additions are appended after them.
var seedObjects = []string{
	"Сам Сити",
	"Рубловка",
	"Ал Бухорий",
	"Сити+Сиёб Б Й К блок",
	"Макон Малл",
	"Карши Малл",
	"Карши Хотен",
	"Воха Гавхари",
	"Зарметан усто Габур",
	"Коха завод",
	"Мотрид катеж",
	"Хишрав",
	"Махдуми Азам",
	"Сирдарё 1/10 Зухри",
	"Эшонгузар",
	"Бодомзор Юнусобад",
	"Янги Тошкент",
	"Қўрғон",
	"Пилла Пункт катеж",
	"Рубловка (Хожи бобо дом)",
	"Вин завод",
	"СХФ-2",
	"В.Комад",
	"Ургут Малл",
	"Пажарни склад дом",
	"Қўқон Малл",
	"Қува ҚВП",
}

var seedExpenseTypes = []string{
	"Mijozlar",
	"Дорожные расходы",
	"Олиб чикиб кетилган мусор",
	"Курилиш материаллар",
	"Хоз товары и инвентарь",
	"Ремонт техники и запчасти",
	"Коммунал и интернет",
	"Прочие расходы",
	"Хизмат (Прочие расходы)",
	"Перечесления Расход",
	"Перечесления Период",
	"Эхсон",
	"Карз олинди",
	"Карз кайтарилди",
	"Перевод",
	"Доллар олинди",
	"Доллар сотилди",
	"Переброска",
	"Материал",
	"Йокилги",
	"Аренда техника",
	"Обём",
	"Ойлик",
	"Премия",
	"Эхсон учун",
	"Расход техника",
	"Хозтавар",
	"Кунлик ишчи",
	"Конставар",
	"Бошқа расход",
}

var seedPayMethods = []string{
	"Plastik",
	"Naxt",
	"Perevod",
	"Bank",
}

var seedCategories = []string{
	"Doimiy Xarajat",
	"Oʻzgaruvchan Xarajat",
	"Qarz",
	"Avtoprom",
	"Divident",
	"Soliq",
	"Ish Xaqi",
}

// SeedFor returns the fixed seed list for a catalog kind.
func SeedFor(kind domain.CatalogKind) []string {
	switch kind {
	case domain.CatalogObjects:
		return seedObjects
	case domain.CatalogExpenseTypes:
		return seedExpenseTypes
	case domain.CatalogPayMethods:
		return seedPayMethods
	case domain.CatalogCategories:
		return seedCategories
	}
	return nil
}
