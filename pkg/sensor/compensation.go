package sensor

import "math"

// calibration holds the factory trimming parameters of one BME680.
type calibration struct {
	t1 uint16
	t2 int16
	t3 int8

	p1  uint16
	p2  int16
	p3  int8
	p4  int16
	p5  int16
	p6  int8
	p7  int8
	p8  int16
	p9  int16
	p10 uint8

	h1 uint16
	h2 uint16
	h3 int8
	h4 int8
	h5 int8
	h6 uint8
	h7 int8

	gh1 int8
	gh2 int16
	gh3 int8

	resHeatVal   int8
	resHeatRange uint8
	rangeSwErr   int8
}

// parseCalibration decodes the concatenated 0x89 (25 bytes) and 0xE1
// (16 bytes) blocks plus the res_heat_val, res_heat_range and range_sw_err
// registers.
func parseCalibration(c []byte, heat [3]byte) calibration {
	u16 := func(lsb, msb int) uint16 { return uint16(c[msb])<<8 | uint16(c[lsb]) }
	return calibration{
		t1: u16(33, 34),
		t2: int16(u16(1, 2)),
		t3: int8(c[3]),

		p1:  u16(5, 6),
		p2:  int16(u16(7, 8)),
		p3:  int8(c[9]),
		p4:  int16(u16(11, 12)),
		p5:  int16(u16(13, 14)),
		p7:  int8(c[15]),
		p6:  int8(c[16]),
		p8:  int16(u16(19, 20)),
		p9:  int16(u16(21, 22)),
		p10: c[23],

		h1: uint16(c[27])<<4 | uint16(c[26]&0x0F),
		h2: uint16(c[25])<<4 | uint16(c[26]>>4),
		h3: int8(c[28]),
		h4: int8(c[29]),
		h5: int8(c[30]),
		h6: c[31],
		h7: int8(c[32]),

		gh1: int8(c[37]),
		gh2: int16(u16(35, 36)),
		gh3: int8(c[38]),

		resHeatVal:   int8(heat[0]),
		resHeatRange: (heat[1] & 0x30) >> 4,
		rangeSwErr:   int8(heat[2]) >> 4,
	}
}

// temperature returns °C and the fine resolution value the other
// compensations depend on.
func (c calibration) temperature(adc uint32) (float64, float64) {
	a := float64(adc)
	var1 := (a/16384.0 - float64(c.t1)/1024.0) * float64(c.t2)
	d := a/131072.0 - float64(c.t1)/8192.0
	var2 := d * d * float64(c.t3) * 16.0
	tFine := var1 + var2
	return tFine / 5120.0, tFine
}

// pressure returns Pa.
func (c calibration) pressure(adc uint32, tFine float64) float64 {
	var1 := tFine/2.0 - 64000.0
	var2 := var1 * var1 * (float64(c.p6) / 131072.0)
	var2 += var1 * float64(c.p5) * 2.0
	var2 = var2/4.0 + float64(c.p4)*65536.0
	var1 = (float64(c.p3)*var1*var1/16384.0 + float64(c.p2)*var1) / 524288.0
	var1 = (1.0 + var1/32768.0) * float64(c.p1)
	if var1 == 0 {
		return 0
	}
	p := 1048576.0 - float64(adc)
	p = (p - var2/4096.0) * 6250.0 / var1
	var1 = float64(c.p9) * p * p / 2147483648.0
	var2 = p * (float64(c.p8) / 32768.0)
	var3 := math.Pow(p/256.0, 3) * (float64(c.p10) / 131072.0)
	return p + (var1+var2+var3+float64(c.p7)*128.0)/16.0
}

// humidity returns %RH clamped to 0..100.
func (c calibration) humidity(adc uint16, tFine float64) float64 {
	t := tFine / 5120.0
	var1 := float64(adc) - (float64(c.h1)*16.0 + float64(c.h3)/2.0*t)
	var2 := var1 * (float64(c.h2) / 262144.0 * (1.0 + float64(c.h4)/16384.0*t + float64(c.h5)/1048576.0*t*t))
	var3 := float64(c.h6) / 16384.0
	var4 := float64(c.h7) / 2097152.0
	h := var2 + (var3+var4*t)*var2*var2
	return math.Max(0, math.Min(100, h))
}

var (
	gasK1 = [16]float64{0, 0, 0, 0, 0, -1, 0, -0.8, 0, 0, -0.2, -0.5, 0, -1, 0, 0}
	gasK2 = [16]float64{0, 0, 0, 0, 0.1, 0.7, 0, -0.8, -0.1, 0, 0, 0, 0, 0, 0, 0}
)

// gasResistance returns Ohm.
func (c calibration) gasResistance(adc uint16, gasRange uint8) float64 {
	r := gasRange & 0x0F
	var1 := 1340.0 + 5.0*float64(c.rangeSwErr)
	var2 := var1 * (1.0 + gasK1[r]/100.0)
	var3 := 1.0 + gasK2[r]/100.0
	return 1.0 / (var3 * 0.000000125 * float64(uint32(1)<<r) * ((float64(adc)-512.0)/var2 + 1.0))
}

// heaterResistance returns the res_heat_x register value for a target
// heater temperature at the given ambient temperature.
func (c calibration) heaterResistance(target, ambient float64) byte {
	if target > 400 {
		target = 400
	}
	var1 := float64(c.gh1)/16.0 + 49.0
	var2 := float64(c.gh2)/32768.0*0.0005 + 0.00235
	var3 := float64(c.gh3) / 1024.0
	var4 := var1 * (1.0 + var2*target)
	var5 := var4 + var3*ambient
	res := 3.4 * (var5*(4.0/(4.0+float64(c.resHeatRange)))*(1.0/(1.0+float64(c.resHeatVal)*0.002)) - 25)
	return byte(res)
}
