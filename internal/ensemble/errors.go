package ensemble

import "errors"

var (
	// ErrModelNotReady 模型尚未训练或加载
	ErrModelNotReady = errors.New("模型未就绪")
	// ErrPersistence 模型包损坏或不完整
	ErrPersistence = errors.New("模型包无效")
	// ErrInsufficientData 训练样本不足
	ErrInsufficientData = errors.New("训练样本不足")
)
