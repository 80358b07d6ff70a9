package fire

import "time"

// staticStatusTable seeds the region/subregion fallback entries consulted
// when no provider answers. The data is part of the fallback semantics, not
// configuration.
func staticStatusTable() map[string]StatusRecord {
	return map[string]StatusRecord{
		"Ontario,Toronto": {
			Status:       RestrictedBurn,
			ValidFrom:    time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
			ValidTo:      time.Date(2024, 9, 30, 23, 59, 59, 0, time.UTC),
			Jurisdiction: "City of Toronto",
			Restrictions: []string{
				"No burning between 8 AM and 8 PM",
				"Maximum pile size 2m x 2m",
			},
		},
		"British Columbia,Vancouver": {
			Status:       NoBurn,
			ValidFrom:    time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC),
			ValidTo:      time.Date(2024, 10, 15, 23, 59, 59, 0, time.UTC),
			Jurisdiction: "BC Wildfire Service",
			Restrictions: []string{
				"Complete fire ban in effect",
				"All open fires prohibited",
			},
		},
		"Alberta,Calgary": {
			Status:       OpenBurn,
			ValidFrom:    time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
			ValidTo:      time.Date(2024, 11, 30, 23, 59, 59, 0, time.UTC),
			Jurisdiction: "Alberta Agriculture and Forestry",
		},
		"New York,New York County": {
			Status:       RestrictedBurn,
			ValidFrom:    time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
			ValidTo:      time.Date(2024, 11, 30, 23, 59, 59, 0, time.UTC),
			Jurisdiction: "New York State Department of Environmental Conservation",
			Restrictions: []string{
				"Permit required",
				"No burning during high wind conditions",
			},
		},
		"California,Los Angeles County": {
			Status:       NoBurn,
			ValidFrom:    time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
			ValidTo:      time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC),
			Jurisdiction: "California Department of Forestry and Fire Protection",
			Restrictions: []string{
				"Red flag warning in effect",
				"All outdoor burning prohibited",
			},
		},
	}
}
