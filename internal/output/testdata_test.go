package output

import "tenderscan/internal/tender"

func strPtr(s string) *string { return &s }

func sampleRecords() []tender.Record {
	return []tender.Record{
		{
			Title:        "Поставка бумаги",
			Company:      "ООО Ромашка",
			DateCreated:  "01.02.2025",
			DateDeadline: "15.02.2025",
			URL:          "https://www.b2b-center.ru/market/view.html?id=1&from=list",
			Category:     strPtr("Канцелярия"),
			Page:         1,
		},
		{
			Title:        "Ремонт кровли",
			Company:      "Не указана",
			DateCreated:  "02.02.2025",
			DateDeadline: "20.02.2025",
			URL:          "https://www.b2b-center.ru/market/view.html?id=2",
			Description:  strPtr("Капитальный ремонт"),
			Page:         2,
		},
	}
}
