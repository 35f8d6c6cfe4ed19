package census

// Variable is a requested field code with its human label.
type Variable struct {
	Code        string
	Description string
}

// Codes returns the field codes in request order.
func Codes(vars []Variable) []string {
	out := make([]string, len(vars))
	for i, v := range vars {
		out[i] = v.Code
	}
	return out
}

// Describe maps code to description.
func Describe(vars []Variable) map[string]string {
	out := make(map[string]string, len(vars))
	for _, v := range vars {
		out[v.Code] = v.Description
	}
	return out
}

const (
	TotalPopulation       = "B01003_001E"
	MedianHouseholdIncome = "B19013_001E"
	MedianHomeValue       = "B25077_001E"
	MedianGrossRent       = "B25064_001E"
	TotalHousingUnits     = "B25001_001E"
	OwnerOccupied         = "B25003_002E"
	RenterOccupied        = "B25003_003E"
	TotalWorkers          = "B08301_001E"
	PublicTransit         = "B08301_010E"
	WorkedFromHome        = "B08301_021E"
	Bachelors             = "B15003_022E"
	Masters               = "B15003_023E"
	Professional          = "B15003_024E"
	Doctorate             = "B15003_025E"
	DecennialPopulation   = "P1_001N"
	TotalHouseholds       = "B19001_001E"
	TotalEmployed         = "C24010_001E"
)

// ACSBaseline is the ACS 5-year variable set for the baseline summary.
var ACSBaseline = []Variable{
	{TotalPopulation, "Total Population"},
	{MedianHouseholdIncome, "Median Household Income"},
	{MedianHomeValue, "Median Home Value"},
	{MedianGrossRent, "Median Gross Rent"},
	{TotalHousingUnits, "Total Housing Units"},
	{OwnerOccupied, "Owner Occupied Housing"},
	{RenterOccupied, "Renter Occupied Housing"},
	{"B25004_001E", "Vacancy Status Total"},
	{TotalWorkers, "Total Workers 16+"},
	{PublicTransit, "Public Transportation to Work"},
	{WorkedFromHome, "Worked from Home"},
	{"B08303_001E", "Travel Time to Work Total"},
	{Bachelors, "Bachelor's Degree"},
	{Masters, "Master's Degree"},
	{Professional, "Professional Degree"},
	{Doctorate, "Doctorate Degree"},
}

// DecennialPL is the 2020 redistricting population.
var DecennialPL = []Variable{
	{DecennialPopulation, "Total Population (Decennial 2020)"},
}

// IncomeBracket is one B19001 household income bucket with its upper bound.
type IncomeBracket struct {
	Variable
	MaxIncome float64
}

// IncomeBrackets are the B19001 buckets. The open-ended top bucket uses 300000.
var IncomeBrackets = []IncomeBracket{
	{Variable{"B19001_002E", "Less than $10,000"}, 10000},
	{Variable{"B19001_003E", "$10,000 to $14,999"}, 14999},
	{Variable{"B19001_004E", "$15,000 to $19,999"}, 19999},
	{Variable{"B19001_005E", "$20,000 to $24,999"}, 24999},
	{Variable{"B19001_006E", "$25,000 to $29,999"}, 29999},
	{Variable{"B19001_007E", "$30,000 to $34,999"}, 34999},
	{Variable{"B19001_008E", "$35,000 to $39,999"}, 39999},
	{Variable{"B19001_009E", "$40,000 to $44,999"}, 44999},
	{Variable{"B19001_010E", "$45,000 to $49,999"}, 49999},
	{Variable{"B19001_011E", "$50,000 to $59,999"}, 59999},
	{Variable{"B19001_012E", "$60,000 to $74,999"}, 74999},
	{Variable{"B19001_013E", "$75,000 to $99,999"}, 99999},
	{Variable{"B19001_014E", "$100,000 to $124,999"}, 124999},
	{Variable{"B19001_015E", "$125,000 to $149,999"}, 149999},
	{Variable{"B19001_016E", "$150,000 to $199,999"}, 199999},
	{Variable{"B19001_017E", "$200,000 or more"}, 300000},
}

// IncomeDistribution is the B19001 total plus every bracket.
func IncomeDistribution() []Variable {
	out := []Variable{{TotalHouseholds, "Total Households"}}
	for _, b := range IncomeBrackets {
		out = append(out, b.Variable)
	}
	return out
}

// EmploymentByOccupation is the C24010 occupation breakdown.
var EmploymentByOccupation = []Variable{
	{TotalEmployed, "Total Employed"},
	{"C24010_002E", "Management, business, science, and arts"},
	{"C24010_003E", "Service occupations"},
	{"C24010_004E", "Sales and office occupations"},
	{"C24010_005E", "Natural resources, construction, maintenance"},
	{"C24010_006E", "Production, transportation, material moving"},
}
