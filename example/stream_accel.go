package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"time"

	"tremor/Sensor"
)

// 连接串口桥后面的 LSM6DSL，并打印加速度模值的变化
func main() {
	// 1. 配置串口参数
	portName := flag.String("port", "/dev/ttyACM0", "serial port of the I2C bridge")
	baudRate := flag.Int("baud", 115200, "baud rate")
	duration := flag.Duration("for", 10*time.Second, "how long to stream samples")
	flag.Parse()

	fmt.Printf("Connecting to sensor bridge on %s...\n", *portName)

	// 2. 创建客户端实例并打开连接
	bridge := Sensor.NewBridge(*portName, *baudRate)
	if err := bridge.Open(); err != nil {
		log.Fatalf("Failed to open serial port: %v\n", err)
	}
	defer bridge.Close()

	// 3. 身份校验、复位、104Hz / ±2g
	dev := Sensor.NewLSM6DSL(bridge, Sensor.DefaultOptions())
	if err := dev.Init(); err != nil {
		log.Fatalf("Sensor init failed: %v\n", err)
	}
	fmt.Println("Accelerometer configuration completed")

	// 4. 轮询数据，模值变化超过 0.05g 才打印
	prev := 1.0
	deadline := time.Now().Add(*duration)
	for time.Now().Before(deadline) {
		ready, err := dev.DataReady()
		if err != nil {
			log.Printf("Error polling status: %v\n", err)
		} else if ready {
			a, err := dev.ReadAcceleration()
			if err != nil {
				log.Printf("Error reading acceleration: %v\n", err)
			} else {
				mag := math.Sqrt(a.X*a.X + a.Y*a.Y + a.Z*a.Z)
				if math.Abs(mag-prev) > 0.05 {
					fmt.Printf("Current acceleration magnitude: %.2f g\n", mag)
					prev = mag
				}
			}
		}
		time.Sleep(100 * time.Millisecond)
	}

	fmt.Println("Bye.")
}
