package client

// DescribeAQI names the air quality category. Values outside 1..5 are "unknown".
func DescribeAQI(aqi int) string {
	switch aqi {
	case 1:
		return "very good"
	case 2:
		return "good"
	case 3:
		return "moderate"
	case 4:
		return "poor"
	case 5:
		return "very poor"
	default:
		return "unknown"
	}
}

// DescribeUVI names the UV band. Each boundary belongs to the lower band.
func DescribeUVI(uvi float64) string {
	switch {
	case uvi <= 2:
		return "low"
	case uvi <= 5:
		return "moderate"
	case uvi <= 7:
		return "high"
	case uvi <= 10:
		return "very high"
	default:
		return "extreme"
	}
}
