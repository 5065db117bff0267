package catalog

// StageDef is the seed definition of one stage template.
type StageDef struct {
	Code         string
	Name         string
	Order        int
	Checklist    []string
	Deliverables []string
}

// DefaultStages is the twelve-step engagement methodology.
var DefaultStages = []StageDef{
	{
		Code: "INTAKE", Name: "Intake & Contract", Order: 1,
		Checklist:    []string{"Scope defined", "Goals agreed", "Stakeholders identified", "Contract signed"},
		Deliverables: []string{"Scope & Goals", "Stakeholder list"},
	},
	{
		Code: "DIAG", Name: "Diagnosis & Discovery", Order: 2,
		Checklist:    []string{"Interviews completed", "Data collected", "Pain points prioritized", "Root causes drafted"},
		Deliverables: []string{"Diagnosis report", "Priority problems list"},
	},
	{
		Code: "MI", Name: "Market Intelligence", Order: 3,
		Checklist:    []string{"TAM/SAM/SOM estimated", "Segments mapped", "Demand signals captured"},
		Deliverables: []string{"Market intelligence brief"},
	},
	{
		Code: "ICP", Name: "Customer & ICP", Order: 4,
		Checklist:    []string{"ICP drafted", "Personas created", "Buying committee mapped"},
		Deliverables: []string{"ICP & Personas pack"},
	},
	{
		Code: "COMP", Name: "Competitor & Positioning", Order: 5,
		Checklist:    []string{"Competitor set defined", "Positioning map created", "Differentiation points validated"},
		Deliverables: []string{"Competitor/Positioning sheet"},
	},
	{
		Code: "ECO", Name: "Ecosystem Mapping", Order: 6,
		Checklist:    []string{"Partners list", "Regulators list", "Alternatives list", "Ecosystem map exported"},
		Deliverables: []string{"Ecosystem map"},
	},
	{
		Code: "STRAT", Name: "Strategy & Direction", Order: 7,
		Checklist:    []string{"Strategic options listed", "Priorities set", "Targets defined"},
		Deliverables: []string{"Strategy choices + priorities"},
	},
	{
		Code: "BDPLAN", Name: "BD Plan & Operating Model", Order: 8,
		Checklist:    []string{"BD playbook drafted", "Operating model roles", "Process cadence"},
		Deliverables: []string{"BD operating model"},
	},
	{
		Code: "OFFER", Name: "Offer & Pricing", Order: 9,
		Checklist:    []string{"Value proposition finalized", "Packaging tiers", "Pricing logic"},
		Deliverables: []string{"Offer + pricing sheet"},
	},
	{
		Code: "GTM", Name: "GTM & Sales Motion", Order: 10,
		Checklist:    []string{"Acquisition channels selected", "Funnel defined", "Sales motion documented"},
		Deliverables: []string{"GTM plan"},
	},
	{
		Code: "OPPS", Name: "Opportunity & Partnerships Pipeline", Order: 11,
		Checklist:    []string{"Opportunity list created", "Scoring model applied", "Next actions assigned"},
		Deliverables: []string{"Opportunity pipeline"},
	},
	{
		Code: "KPIS", Name: "KPIs, Dashboard & Iteration", Order: 12,
		Checklist:    []string{"KPI set defined", "Dashboard live", "Iteration cadence scheduled"},
		Deliverables: []string{"KPI dashboard definition"},
	},
}
