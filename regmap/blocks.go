package regmap

// USART register block (RM0368 section 19.6).
type USART struct {
	SR   Register
	DR   Register
	BRR  Register
	CR1  Register
	CR2  Register
	CR3  Register
	GTPR Register
}

// USART bits.
const (
	USART_SR_PE   = 1 << 0
	USART_SR_FE   = 1 << 1
	USART_SR_NF   = 1 << 2
	USART_SR_ORE  = 1 << 3
	USART_SR_IDLE = 1 << 4
	USART_SR_RXNE = 1 << 5
	USART_SR_TC   = 1 << 6
	USART_SR_TXE  = 1 << 7

	USART_CR1_RE     = 1 << 2
	USART_CR1_TE     = 1 << 3
	USART_CR1_RXNEIE = 1 << 5
	USART_CR1_TCIE   = 1 << 6
	USART_CR1_TXEIE  = 1 << 7
	USART_CR1_PS     = 1 << 9
	USART_CR1_PCE    = 1 << 10
	USART_CR1_M      = 1 << 12
	USART_CR1_UE     = 1 << 13

	USART_CR2_STOP_Pos = 12
	USART_CR2_STOP_Msk = 0x3
	USART_CR2_STOP     = USART_CR2_STOP_Msk << USART_CR2_STOP_Pos
	USART_CR2_STOP_1   = 0x0 // one stop bit
	USART_CR2_STOP_2   = 0x2 // two stop bits

	USART_BRR_Max = 0xFFFF
	USART_BRR_Min = 16 // mantissa 1, fraction 0 at 16x oversampling
)

// SPI register block (RM0368 section 20.5).
type SPI struct {
	CR1     Register
	CR2     Register
	SR      Register
	DR      Register
	CRCPR   Register
	RXCRCR  Register
	TXCRCR  Register
	I2SCFGR Register
	I2SPR   Register
}

// SPI bits.
const (
	SPI_CR1_CPHA     = 1 << 0
	SPI_CR1_CPOL     = 1 << 1
	SPI_CR1_MSTR     = 1 << 2
	SPI_CR1_BR_Pos   = 3
	SPI_CR1_BR_Msk   = 0x7
	SPI_CR1_BR       = SPI_CR1_BR_Msk << SPI_CR1_BR_Pos
	SPI_CR1_SPE      = 1 << 6
	SPI_CR1_LSBFIRST = 1 << 7
	SPI_CR1_SSI      = 1 << 8
	SPI_CR1_SSM      = 1 << 9
	SPI_CR1_DFF      = 1 << 11

	SPI_CR2_SSOE   = 1 << 2
	SPI_CR2_FRF    = 1 << 4
	SPI_CR2_ERRIE  = 1 << 5
	SPI_CR2_RXNEIE = 1 << 6
	SPI_CR2_TXEIE  = 1 << 7

	SPI_SR_RXNE = 1 << 0
	SPI_SR_TXE  = 1 << 1
	SPI_SR_MODF = 1 << 5
	SPI_SR_OVR  = 1 << 6
	SPI_SR_BSY  = 1 << 7
	SPI_SR_FRE  = 1 << 8
)

// I2C register block (RM0368 section 18.6).
type I2C struct {
	CR1   Register
	CR2   Register
	OAR1  Register
	OAR2  Register
	DR    Register
	SR1   Register
	SR2   Register
	CCR   Register
	TRISE Register
	FLTR  Register
}

// I2C bits.
const (
	I2C_CR1_PE    = 1 << 0
	I2C_CR1_START = 1 << 8
	I2C_CR1_STOP  = 1 << 9
	I2C_CR1_ACK   = 1 << 10
	I2C_CR1_SWRST = 1 << 15

	I2C_CR2_FREQ_Msk = 0x3F

	I2C_OAR1_ADD7_Pos  = 1
	I2C_OAR1_ADD7_Msk  = 0x7F
	I2C_OAR1_ADD10_Msk = 0x3FF
	I2C_OAR1_BIT14     = 1 << 14 // reserved, must be kept at 1
	I2C_OAR1_ADDMODE   = 1 << 15

	I2C_SR1_SB    = 1 << 0
	I2C_SR1_ADDR  = 1 << 1
	I2C_SR1_BTF   = 1 << 2
	I2C_SR1_STOPF = 1 << 4
	I2C_SR1_RXNE  = 1 << 6
	I2C_SR1_TXE   = 1 << 7
	I2C_SR1_BERR  = 1 << 8
	I2C_SR1_ARLO  = 1 << 9
	I2C_SR1_AF    = 1 << 10

	I2C_SR2_MSL  = 1 << 0
	I2C_SR2_BUSY = 1 << 1
	I2C_SR2_TRA  = 1 << 2

	I2C_CCR_Msk  = 0xFFF
	I2C_CCR_DUTY = 1 << 14
	I2C_CCR_FS   = 1 << 15

	I2C_TRISE_Msk = 0x3F
)
