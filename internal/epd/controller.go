package epd

// IL0373 / IL0398 command set.
const (
	panelSetting           byte = 0x00
	powerOff               byte = 0x02
	powerOn                byte = 0x04
	boosterSoftStart       byte = 0x06
	deepSleep              byte = 0x07
	dataStartTransmission  byte = 0x10
	displayRefresh         byte = 0x12
	dataStartTransmission2 byte = 0x13
	vcomDataInterval       byte = 0x50
	resolutionSetting      byte = 0x61
	partialWindow          byte = 0x90
	partialIn              byte = 0x91
	partialOut             byte = 0x92

	deepSleepCheck byte = 0xa5
)

type controller interface {
	sendCommand(byte)
	sendData([]byte)
	waitUntilIdle()
}

func initDisplay(ctrl controller, p *Panel) {
	ctrl.sendCommand(boosterSoftStart)
	ctrl.sendData([]byte{0x17, 0x17, 0x17})

	ctrl.sendCommand(powerOn)
	ctrl.waitUntilIdle()

	ctrl.sendCommand(panelSetting)
	ctrl.sendData([]byte{p.PanelSetting})

	ctrl.sendCommand(vcomDataInterval)
	ctrl.sendData([]byte{p.VCOMInterval})

	ctrl.sendCommand(resolutionSetting)
	if p.Chip == IL0398 {
		ctrl.sendData([]byte{byte(p.Width >> 8), byte(p.Width), byte(p.Height >> 8), byte(p.Height)})
	} else {
		ctrl.sendData([]byte{byte(p.Width), byte(p.Height >> 8), byte(p.Height)})
	}
}

// setPartialRAMArea selects the controller RAM window. x is rounded down and
// the right edge up to whole bytes by the controller itself.
func setPartialRAMArea(ctrl controller, p *Panel, x, y, w, h int) {
	xe := (x + w - 1) | 0x07
	ye := y + h - 1
	x &^= 0x07

	ctrl.sendCommand(partialWindow)
	if p.Chip == IL0398 {
		ctrl.sendData([]byte{byte(x >> 8), byte(x), byte(xe >> 8), byte(xe)})
	} else {
		ctrl.sendData([]byte{byte(x), byte(xe)})
	}
	ctrl.sendData([]byte{byte(y >> 8), byte(y), byte(ye >> 8), byte(ye), 0x01})
}

// writeImage loads both planes into a RAM window. The accent plane is sent
// inverted: the canvas marks accent pixels with 0, the controller with 1.
func writeImage(ctrl controller, p *Panel, black, color []byte, x, y, w, h int) {
	n := w / 8 * h

	ctrl.sendCommand(partialIn)
	setPartialRAMArea(ctrl, p, x, y, w, h)

	ctrl.sendCommand(dataStartTransmission)
	ctrl.sendData(black[:n])

	inv := make([]byte, n)
	for i, b := range color[:n] {
		inv[i] = ^b
	}
	ctrl.sendCommand(dataStartTransmission2)
	ctrl.sendData(inv)

	ctrl.sendCommand(partialOut)
}

// fillScreen writes value to the whole black plane and clears the accent
// plane.
func fillScreen(ctrl controller, p *Panel, value byte) {
	n := p.Width / 8 * p.Height

	black := make([]byte, n)
	for i := range black {
		black[i] = value
	}
	ctrl.sendCommand(dataStartTransmission)
	ctrl.sendData(black)

	ctrl.sendCommand(dataStartTransmission2)
	ctrl.sendData(make([]byte, n))
}

func refreshFull(ctrl controller) {
	ctrl.sendCommand(displayRefresh)
	ctrl.waitUntilIdle()
}

func refreshWindow(ctrl controller, p *Panel, x, y, w, h int) {
	ctrl.sendCommand(partialIn)
	setPartialRAMArea(ctrl, p, x, y, w, h)
	ctrl.sendCommand(displayRefresh)
	ctrl.waitUntilIdle()
	ctrl.sendCommand(partialOut)
}

func powerDown(ctrl controller) {
	ctrl.sendCommand(powerOff)
	ctrl.waitUntilIdle()
}

func hibernate(ctrl controller) {
	powerDown(ctrl)
	ctrl.sendCommand(deepSleep)
	ctrl.sendData([]byte{deepSleepCheck})
}
