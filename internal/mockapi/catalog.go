package mockapi

import "github.com/BITS-DEVSEC/im-client/internal/catalog"

// defaultCatalog is the static insurance type tree served by the mock
// backend. IDs are stable so drafts survive restarts of the client (not
// of the server, which keeps everything in memory).
func defaultCatalog() []catalog.InsuranceType {
	return []catalog.InsuranceType{
		{
			ID:          1,
			Name:        "Motor",
			Description: "Cover for private and commercial vehicles",
			CoverageTypes: []catalog.CoverageType{
				{ID: 1, InsuranceTypeID: 1, Name: "Third Party", Description: "Legal minimum liability cover"},
				{ID: 2, InsuranceTypeID: 1, Name: "Own Damage", Description: "Damage to your own vehicle"},
				{ID: 3, InsuranceTypeID: 1, Name: "Comprehensive", Description: "Third party plus own damage and theft"},
			},
		},
		{
			ID:          2,
			Name:        "Home",
			Description: "Cover for residential property",
			CoverageTypes: []catalog.CoverageType{
				{ID: 4, InsuranceTypeID: 2, Name: "Fire and Theft", Description: "Fire, lightning and burglary"},
				{ID: 5, InsuranceTypeID: 2, Name: "Comprehensive", Description: "Structure and contents"},
			},
		},
		{
			ID:          3,
			Name:        "Life",
			Description: "Life assurance products",
			CoverageTypes: []catalog.CoverageType{
				{ID: 6, InsuranceTypeID: 3, Name: "Term Life", Description: "Fixed term life cover"},
				{ID: 7, InsuranceTypeID: 3, Name: "Whole Life", Description: "Lifetime cover with savings element"},
			},
		},
	}
}
