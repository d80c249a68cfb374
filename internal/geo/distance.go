// 包 geo：球面距离、geohash 与坐标校验等与数据集无关的地理工具
package geo

import "math"

// EarthRadiusKm：平均地球半径（千米）
const EarthRadiusKm = 6371.0

func rad(deg float64) float64 { return deg * math.Pi / 180 }

// Haversine：两点球面大圆距离，输入为角度，返回千米
// 约束：全程 float64；a 夹紧到 [0,1]，避免舍入使 sqrt(1-a) 得到 NaN
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := rad(lat2 - lat1)
	dLon := rad(lon2 - lon1)
	sLat := math.Sin(dLat / 2)
	sLon := math.Sin(dLon / 2)
	a := sLat*sLat + math.Cos(rad(lat1))*math.Cos(rad(lat2))*sLon*sLon
	if a > 1 {
		a = 1
	} else if a < 0 {
		a = 0
	}
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// ValidLat / ValidLon：范围校验，NaN 视为非法
func ValidLat(v float64) bool { return !math.IsNaN(v) && v >= -90 && v <= 90 }

func ValidLon(v float64) bool { return !math.IsNaN(v) && v >= -180 && v <= 180 }

// MinDistanceForLonGap：经度相差至少 gapDeg 的两点间距离下界（千米）
// 约束：cosMin 为两点纬度余弦的下界；gapDeg 超过 180 时按 180 计
func MinDistanceForLonGap(gapDeg, cosMin float64) float64 {
	if gapDeg <= 0 || cosMin <= 0 {
		return 0
	}
	if gapDeg > 180 {
		gapDeg = 180
	}
	s := cosMin * math.Sin(rad(gapDeg)/2)
	if s > 1 {
		s = 1
	}
	return 2 * EarthRadiusKm * math.Asin(s)
}
