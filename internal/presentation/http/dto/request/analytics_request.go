package request

// AnalyticsQuery selects the bills an analytics view covers
type AnalyticsQuery struct {
	Range       string `form:"range"`
	Staff       string `form:"staff"`
	Granularity string `form:"granularity" binding:"omitempty,oneof=daily weekly monthly"`
	Limit       int    `form:"limit" binding:"omitempty,min=1,max=100"`
	Format      string `form:"format" binding:"omitempty,oneof=json xlsx"`
}
